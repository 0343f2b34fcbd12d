package worker

import "testing"

func TestFindSmartPlaylistFallsBackToBareName(t *testing.T) {
	list := []SmartPlaylist{
		{Name: "jazz", Expr: []string{"Genre", "Jazz"}, MaxEntries: 50},
	}

	got := findSmartPlaylist(list, "jazz")
	if got.MaxEntries != 50 {
		t.Fatalf("got %+v, want the configured jazz entry", got)
	}

	fallback := findSmartPlaylist(list, "unknown")
	if fallback.Name != "unknown" || len(fallback.Expr) != 0 {
		t.Fatalf("got %+v, want a bare fallback entry", fallback)
	}
}

func TestPoolActiveStartsAtZero(t *testing.T) {
	p := New("tcp", "127.0.0.1:0", "", nil)
	if p.Active() != 0 {
		t.Fatalf("Active() = %d, want 0", p.Active())
	}
}

func TestAttrsToSongCopiesKnownFields(t *testing.T) {
	row := map[string]string{
		"file":          "song.mp3",
		"Artist":        "Tester",
		"Album":         "Test Album",
		"Disc":          "2",
		"duration":      "180.5",
		"Last-Modified": "1690000000",
	}
	song := attrsToSong(row["file"], row)

	if song.URI != "song.mp3" {
		t.Fatalf("URI = %q", song.URI)
	}
	if song.Get("Artist") != "Tester" {
		t.Fatalf("Artist = %q", song.Get("Artist"))
	}
	if song.Get("Disc") != "2" {
		t.Fatalf("Disc = %q", song.Get("Disc"))
	}
	if song.DurationSec != 180.5 {
		t.Fatalf("DurationSec = %v", song.DurationSec)
	}
	if song.LastModified != 1690000000 {
		t.Fatalf("LastModified = %v", song.LastModified)
	}
}
