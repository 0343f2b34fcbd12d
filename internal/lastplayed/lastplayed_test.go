package lastplayed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAddFlushesPastThreshold(t *testing.T) {
	dir := t.TempDir()
	r := New(filepath.Join(dir, "last_played"), 0)

	base := time.Unix(1000, 0)
	for i := 0; i < flushThreshold+1; i++ {
		if err := r.Add("song.mp3", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	if len(r.entries) != 0 {
		t.Fatalf("expected flush to clear in-memory ring, got %d entries", len(r.entries))
	}

	entries, err := r.Recent(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != flushThreshold+1 {
		t.Fatalf("got %d entries, want %d", len(entries), flushThreshold+1)
	}
	// most-recent first
	if entries[0].PlayedAt.Before(entries[len(entries)-1].PlayedAt) {
		t.Fatal("expected most-recent-first ordering")
	}
}

func TestRecentRespectsKeepCount(t *testing.T) {
	dir := t.TempDir()
	r := New(filepath.Join(dir, "last_played"), 3)

	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		if err := r.Add("song.mp3", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := r.Recent(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
}

func TestLoadSkipsCorruptedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_played")
	r := New(path, 0)
	if err := r.Add("a.mp3", time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	// Append a corrupted line directly.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("not-a-valid-line\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := r.load()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 {
		t.Fatalf("got %d entries, want 1", len(data))
	}
}
