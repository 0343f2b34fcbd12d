// Package albumcache implements myMPD's album cache: a radix-tree-style
// index over an MPD library that deduplicates per-album multi-value tags
// and tracks aggregate duration/disc/song counts, rebuilt atomically
// (spec §3 "Album record", §4.2, component C4). Grounded on
// original_source/src/lib/album_cache.c.
package albumcache

import (
	"strconv"
	"sync/atomic"

	"mympdd/internal/container"
	"mympdd/internal/tags"
)

// Album is the aggregate record for one album (spec §3 "Album record").
type Album struct {
	Key            string
	URI            string // first-seen song URI
	Values         map[string][]string
	Single         map[string]string
	LastModified   int64
	Discs          uint
	DurationSec    float64
	DurationMillis int64
	SongCount      uint
}

func newAlbum(key string, song *tags.Song) *Album {
	a := &Album{
		Key:          key,
		URI:          song.URI,
		Values:       map[string][]string{},
		Single:       map[string]string{},
		LastModified: song.LastModified,
	}
	return a
}

// value returns all values of tag on this album record (multi-value tags
// are stored in Values, everything else falls back to a single value).
func (a *Album) value(tag string) []string {
	if v, ok := a.Values[tag]; ok {
		return v
	}
	if v, ok := a.Single[tag]; ok && v != "" {
		return []string{v}
	}
	return nil
}

// addTagDedup appends value to tag's value list if not already present
// (spec §4.2 step 3, §8 "Multi-value dedup").
func (a *Album) addTagDedup(tag, value string) {
	for _, existing := range a.Values[tag] {
		if existing == value {
			return
		}
	}
	a.Values[tag] = append(a.Values[tag], value)
}

// Cache is the atomically-swappable album index (spec §4.2 "Atomic
// rebuild"). The zero value is an empty, usable cache.
type Cache struct {
	idx atomic.Pointer[container.Index[*Album]]
}

// New returns an empty, ready-to-use Cache.
func New() *Cache {
	c := &Cache{}
	c.idx.Store(container.NewIndex[*Album]())
	return c
}

// Lookup returns the album record for key, or nil if absent (spec §4.2
// "lookup(key)").
func (c *Cache) Lookup(key string) *Album {
	idx := c.idx.Load()
	if idx == nil {
		return nil
	}
	album, ok := idx.Get(key)
	if !ok {
		return nil
	}
	return album
}

// Len returns the number of albums currently indexed.
func (c *Cache) Len() int {
	idx := c.idx.Load()
	if idx == nil {
		return 0
	}
	return idx.Len()
}

// Walk calls fn for every album in ascending key order. Safe to call
// concurrently with a rebuild: it observes either the old or the new index,
// never a partial one (spec §4.2 "No partial state is ever visible to
// readers").
func (c *Cache) Walk(fn func(album *Album) bool) {
	idx := c.idx.Load()
	if idx == nil {
		return
	}
	idx.Walk(func(_ string, a *Album) bool {
		return fn(a)
	})
}

// Free drops the cache's contents.
func (c *Cache) Free() {
	c.idx.Store(container.NewIndex[*Album]())
}

// KeyOf deterministically derives a song's album key: lowercase(album) +
// "::" + lowercase(album-artist-or-artist). Returns ("", false) if the
// album tag is empty or both AlbumArtist and Artist are empty (spec §4.2
// "Key derivation", §8 "Album key determinism").
func KeyOf(song *tags.Song) (string, bool) {
	album := song.Get("Album")
	if album == "" {
		return "", false
	}
	artist := song.Get("AlbumArtist")
	if artist == "" {
		artist = song.Get("Artist")
	}
	if artist == "" {
		return "", false
	}
	return tags.FoldLower(album + "::" + artist), true
}

// Build consumes songs and the wanted multi-value tag set and returns a
// freshly built Cache. The caller is expected to discard it on error and
// keep using the previous cache (spec §4.2 "Atomic rebuild", "Failure
// modes"): Build itself never mutates an existing Cache, so a failed
// rebuild simply means its result is never installed via Swap.
func Build(songs <-chan *tags.Song, wanted []string) *Cache {
	idx := container.NewIndex[*Album]()

	for song := range songs {
		key, ok := KeyOf(song)
		if !ok {
			continue
		}

		album, exists := idx.Get(key)
		if !exists {
			album = newAlbum(key, song)
			album.Discs = discOf(song)
			album.SongCount = 1
			album.DurationSec = song.DurationSec
			album.DurationMillis = int64(song.DurationSec * 1000)
		} else {
			album.SongCount++
			album.DurationSec += song.DurationSec
			album.DurationMillis += int64(song.DurationSec * 1000)
			if song.LastModified > album.LastModified {
				album.LastModified = song.LastModified
			}
			if d := discOf(song); d > album.Discs {
				album.Discs = d
			}
		}

		for _, tag := range wanted {
			if !tags.IsMultiValue(tag) {
				if _, ok := album.Single[tag]; !ok {
					album.Single[tag] = song.Get(tag)
				}
				continue
			}
			for _, v := range song.All(tag) {
				album.addTagDedup(tag, v)
			}
		}

		idx.Insert(key, album)
	}

	c := &Cache{}
	c.idx.Store(idx)
	return c
}

// Swap atomically installs built as c's live index; the previous index
// becomes garbage once no reader still holds it (spec §4.2 "Atomic
// rebuild").
func (c *Cache) Swap(built *Cache) {
	c.idx.Store(built.idx.Load())
}

func discOf(song *tags.Song) uint {
	d, err := strconv.ParseUint(song.Get("Disc"), 10, 32)
	if err != nil {
		return 0
	}
	return uint(d)
}
