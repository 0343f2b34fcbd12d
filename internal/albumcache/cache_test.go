package albumcache

import (
	"testing"

	"mympdd/internal/tags"
)

func song(album, albumArtist, artist, disc string, duration float64, lastModified int64) *tags.Song {
	s := &tags.Song{
		URI:          "file" + album,
		DurationSec:  duration,
		LastModified: lastModified,
		Tags:         map[string][]string{},
	}
	if album != "" {
		s.Tags["Album"] = []string{album}
	}
	if albumArtist != "" {
		s.Tags["AlbumArtist"] = []string{albumArtist}
	}
	if artist != "" {
		s.Tags["Artist"] = []string{artist}
	}
	if disc != "" {
		s.Tags["Disc"] = []string{disc}
	}
	return s
}

func TestKeyOf(t *testing.T) {
	k, ok := KeyOf(song("OK Computer", "Radiohead", "", "", 0, 0))
	if !ok || k != "ok computer::radiohead" {
		t.Fatalf("got key=%q ok=%v", k, ok)
	}

	k, ok = KeyOf(song("OK Computer", "", "Radiohead", "", 0, 0))
	if !ok || k != "ok computer::radiohead" {
		t.Fatalf("artist fallback: got key=%q ok=%v", k, ok)
	}

	_, ok = KeyOf(song("", "Radiohead", "", "", 0, 0))
	if ok {
		t.Fatalf("expected no key for empty album")
	}

	_, ok = KeyOf(song("OK Computer", "", "", "", 0, 0))
	if ok {
		t.Fatalf("expected no key when both artist tags are empty")
	}
}

func TestBuildAggregate(t *testing.T) {
	songs := make(chan *tags.Song, 2)
	songs <- song("A", "Band", "", "1", 200, 100)
	songs <- song("A", "Band", "", "2", 240, 200)
	close(songs)

	c := Build(songs, nil)
	album := c.Lookup("a::band")
	if album == nil {
		t.Fatal("album not found")
	}
	if album.SongCount != 2 {
		t.Fatalf("song count = %d, want 2", album.SongCount)
	}
	if album.DurationSec != 440 {
		t.Fatalf("duration = %v, want 440", album.DurationSec)
	}
	if album.Discs != 2 {
		t.Fatalf("discs = %d, want 2", album.Discs)
	}
	if album.LastModified != 200 {
		t.Fatalf("last modified = %d, want 200", album.LastModified)
	}
}

func TestBuildSkipsSongsWithoutAlbum(t *testing.T) {
	songs := make(chan *tags.Song, 1)
	songs <- song("", "Band", "", "", 100, 0)
	close(songs)

	c := Build(songs, nil)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d albums", c.Len())
	}
}

func TestMultiValueDedup(t *testing.T) {
	s1 := song("A", "Band", "", "", 100, 0)
	s1.Tags["Artist"] = []string{"Band", "Guest"}
	s2 := song("A", "Band", "", "", 100, 0)
	s2.Tags["Artist"] = []string{"Band"}

	songs := make(chan *tags.Song, 2)
	songs <- s1
	songs <- s2
	close(songs)

	c := Build(songs, []string{"Artist"})
	album := c.Lookup("a::band")
	if album == nil {
		t.Fatal("album not found")
	}
	if len(album.Values["Artist"]) != 2 {
		t.Fatalf("expected 2 distinct artist values, got %v", album.Values["Artist"])
	}
}

func TestSwapIsAtomic(t *testing.T) {
	c := New()
	songs := make(chan *tags.Song, 1)
	songs <- song("A", "Band", "", "", 100, 0)
	close(songs)

	built := Build(songs, nil)
	c.Swap(built)

	if c.Lookup("a::band") == nil {
		t.Fatal("expected album visible after swap")
	}
}
