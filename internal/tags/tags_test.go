package tags

import "testing"

func TestSortTagFallback(t *testing.T) {
	if got := SortTag("Artist", []string{"ArtistSort"}); got != "ArtistSort" {
		t.Fatalf("expected ArtistSort, got %s", got)
	}
	if got := SortTag("Artist", nil); got != "Artist" {
		t.Fatalf("expected Artist, got %s", got)
	}
}

func TestSortClauseTranslatesLastModified(t *testing.T) {
	if got := SortClause("LastModified", true, nil); got != "Last-Modified desc" {
		t.Fatalf("got %q, want %q", got, "Last-Modified desc")
	}
	if got := SortClause("LastModified", false, nil); got != "Last-Modified asc" {
		t.Fatalf("got %q, want %q", got, "Last-Modified asc")
	}
}

func TestSortClauseAppliesSortTagFallback(t *testing.T) {
	if got := SortClause("Artist", true, []string{"ArtistSort"}); got != "ArtistSort desc" {
		t.Fatalf("got %q, want %q", got, "ArtistSort desc")
	}
}

func TestMusicBrainzSplit(t *testing.T) {
	s := &Song{Tags: map[string][]string{"MusicBrainzArtistId": {"id1;id2;id3"}}}
	got := JSONValues(s, "MusicBrainzArtistId")
	want := []string{"id1", "id2", "id3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTitleFallback(t *testing.T) {
	s := &Song{URI: "music/dir/track.mp3"}
	if got := ScalarValue(s, "Title"); got != "track.mp3" {
		t.Fatalf("expected basename fallback, got %q", got)
	}

	s.Tags = map[string][]string{"Name": {"Stream Name"}}
	if got := ScalarValue(s, "Title"); got != "Stream Name" {
		t.Fatalf("expected Name fallback, got %q", got)
	}
}

func TestFoldLowerUnicode(t *testing.T) {
	if got := FoldLower("ÀLBUM"); got != "àlbum" {
		t.Fatalf("got %q", got)
	}
}
