package coverart

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProbeNamesPrefersFirstMatchingPriority(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "back.jpg"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "folder.jpg"), []byte("f"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := probeNames(dir, []string{"folder", "cover", "back"})
	want := filepath.Join(dir, "folder.jpg")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProbeNamesNoneFound(t *testing.T) {
	dir := t.TempDir()
	got := probeNames(dir, []string{"folder", "cover"})
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestResolveCandidateWithExplicitExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := resolveCandidate(dir, "cover.png"); got != path {
		t.Fatalf("got %q, want %q", got, path)
	}
	if got := resolveCandidate(dir, "missing.png"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestCovercacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewCovercache(dir)

	img := Image{MimeType: "image/jpeg", Data: []byte("jpeg-bytes")}
	if err := c.Write("song.mp3", 0, img); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup("song.mp3", 0)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.MimeType != img.MimeType || string(got.Data) != string(img.Data) {
		t.Fatalf("got %+v, want %+v", got, img)
	}

	if _, ok := c.Lookup("song.mp3", 1); ok {
		t.Fatal("expected cache miss for a different offset")
	}
}

func TestCovercacheDisabledIsNoop(t *testing.T) {
	c := NewCovercache("")
	if err := c.Write("song.mp3", 0, Image{MimeType: "image/jpeg", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("song.mp3", 0); ok {
		t.Fatal("expected no cache without a directory")
	}
}

func TestCovercachePruneUnlinksStaleFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCovercache(dir)

	stale := filepath.Join(dir, "stale-0.jpg")
	fresh := filepath.Join(dir, "fresh-0.jpg")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fresh, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	staleTime := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(stale, staleTime, staleTime); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Prune(31)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("got %d removed, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale cache file to be unlinked")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("expected fresh cache file to survive")
	}
}

func TestCovercachePruneDisabledByNonPositiveKeepDays(t *testing.T) {
	dir := t.TempDir()
	c := NewCovercache(dir)
	path := filepath.Join(dir, "old-0.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-365 * 24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Prune(0)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("got %d removed, want 0 when pruning is disabled", removed)
	}
}

func TestMimeByExt(t *testing.T) {
	cases := map[string]string{
		"cover.jpg":  "image/jpeg",
		"cover.jpeg": "image/jpeg",
		"cover.png":  "image/png",
		"cover.webp": "image/webp",
		"cover.xyz":  "application/octet-stream",
	}
	for path, want := range cases {
		if got := mimeByExt(path); got != want {
			t.Fatalf("mimeByExt(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSniffImageMimePrefersDeclared(t *testing.T) {
	if got := sniffImageMime("image/png", []byte{0xff, 0xd8, 0xff}); got != "image/png" {
		t.Fatalf("got %q", got)
	}
}

func TestResolverFallsThroughToFalseWithoutAnySource(t *testing.T) {
	r := New(t.TempDir(), t.TempDir(), NewCovercache(""), []string{"folder"}, nil, false)
	if _, ok := r.Resolve("missing/song.mp3", SizeFull, 0); ok {
		t.Fatal("expected no image to resolve")
	}
}

func TestResolveStreamFindsLocalThumb(t *testing.T) {
	workdir := t.TempDir()
	thumbsDir := filepath.Join(workdir, "pics", "thumbs")
	if err := os.MkdirAll(thumbsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	safe := sanitizeFilename("http://stream.example.com/radio.mp3")
	if err := os.WriteFile(filepath.Join(thumbsDir, safe+".png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(workdir, t.TempDir(), NewCovercache(""), nil, nil, false)
	result := r.ResolveStream("http://stream.example.com/radio.mp3")
	if !result.Found {
		t.Fatal("expected local thumb to resolve")
	}
	if result.Image.MimeType != "image/png" {
		t.Fatalf("got mime %q, want image/png", result.Image.MimeType)
	}
}

func TestResolveStreamRedirectsOnExternalEXTIMG(t *testing.T) {
	workdir := t.TempDir()
	webradiosDir := filepath.Join(workdir, "webradios")
	if err := os.MkdirAll(webradiosDir, 0o755); err != nil {
		t.Fatal(err)
	}
	safe := sanitizeFilename("http://stream.example.com/radio.mp3")
	m3u := "#EXTM3U\n#EXTIMG:http://cdn.example.com/logo.png\n"
	if err := os.WriteFile(filepath.Join(webradiosDir, safe+".m3u"), []byte(m3u), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(workdir, t.TempDir(), NewCovercache(""), nil, nil, false)
	result := r.ResolveStream("http://stream.example.com/radio.mp3")
	if result.RedirectURL != "http://cdn.example.com/logo.png" {
		t.Fatalf("got redirect %q", result.RedirectURL)
	}
}

func TestResolveStreamFallsThroughToNothing(t *testing.T) {
	r := New(t.TempDir(), t.TempDir(), NewCovercache(""), nil, nil, false)
	result := r.ResolveStream("http://stream.example.com/radio.mp3")
	if result.Found || result.RedirectURL != "" {
		t.Fatalf("expected no resolution, got %+v", result)
	}
}

func TestIsStreamURI(t *testing.T) {
	cases := map[string]bool{
		"http://stream.example.com/radio.mp3": true,
		"https://stream.example.com/radio":    true,
		"Music/Artist/song.mp3":                false,
		"":                                     false,
	}
	for uri, want := range cases {
		if got := IsStreamURI(uri); got != want {
			t.Fatalf("IsStreamURI(%q) = %v, want %v", uri, got, want)
		}
	}
}
