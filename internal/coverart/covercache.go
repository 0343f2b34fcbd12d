package coverart

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mympdd/internal/stateio"
)

// Image is a resolved cover-art payload ready to be served or cached.
type Image struct {
	MimeType string
	Data     []byte
}

// extByMime maps the handful of formats covercache.c's mimetype helper
// actually serves (spec §6 "image responses set Content-Type: image/*";
// §4.7 step 2 "Cover-cache hit").
var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

// Covercache is the on-disk extraction cache keyed by song URI + offset
// (grounded on covercache_write_file/check_covercache, referenced but not
// itself present in the retrieved source pack; filename scheme inferred
// from the write/check call sites in albumart.c).
type Covercache struct {
	dir string
}

// NewCovercache returns a cache rooted at dir (created on first Write).
func NewCovercache(dir string) *Covercache {
	return &Covercache{dir: dir}
}

// Lookup returns a cached image for uri/offset, if present.
func (c *Covercache) Lookup(uri string, offset int) (Image, bool) {
	if c.dir == "" {
		return Image{}, false
	}
	prefix := cacheKey(uri, offset)
	for mime, ext := range extByMime {
		path := filepath.Join(c.dir, prefix+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return Image{MimeType: mime, Data: data}, true
		}
	}
	return Image{}, false
}

// Write persists img under uri/offset's cache key and returns an error for
// a mime type it has no file extension for (spec §4.7 "optionally write
// the extracted bytes to the cover cache"). It does nothing when the cache
// directory is unset.
func (c *Covercache) Write(uri string, offset int, img Image) error {
	if c.dir == "" {
		return nil
	}
	ext, ok := extByMime[img.MimeType]
	if !ok {
		return fmt.Errorf("coverart: unsupported mime type %q", img.MimeType)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.dir, cacheKey(uri, offset)+ext)
	return stateio.WriteFile(path, img.Data, 0o644)
}

func cacheKey(uri string, offset int) string {
	sum := md5.Sum([]byte(uri))
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), offset)
}

// Prune unlinks every cache entry whose mtime is older than
// keepDays*86400 seconds (spec §4.7 "Cover-cache retention is
// time-based: files older than covercache_keep_days are deleted on next
// check"; §8 testable property "Cover-cache TTL"). keepDays <= 0
// disables pruning entirely, matching covercache being effectively
// unmanaged when retention is turned off. Grounded on the same
// referenced-but-not-retrieved check_covercache behavior as the rest of
// this file; os.Stat/os.Remove are stdlib, justified because no example
// repo wraps mtime-based file eviction in a library.
func (c *Covercache) Prune(keepDays int) (int, error) {
	if c.dir == "" || keepDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
