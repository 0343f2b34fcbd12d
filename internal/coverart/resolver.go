package coverart

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"
)

// Size distinguishes the full-size and thumbnail cover-art variants (spec
// §6 "/albumart" vs "/albumart-thumb").
type Size int

const (
	SizeFull Size = iota
	SizeThumb
)

// Resolver implements the cascading lookup spec §4.7 describes: stream-URI
// thumb/webradio lookup → covercache → filesystem cover-name probe →
// embedded tag extraction → MPD albumart → caller-supplied placeholder.
// Grounded on original_source/src/web_server/albumart.c's
// request_handler_albumart_by_uri.
type Resolver struct {
	Workdir           string
	MusicDirectory    string
	Cache             *Covercache
	CoverImageNames   []string
	ThumbnailNames    []string
	CovercacheEnabled bool
}

// New returns a Resolver rooted at workdir/musicDir, backed by cache.
func New(workdir, musicDir string, cache *Covercache, coverImageNames, thumbnailNames []string, covercacheEnabled bool) *Resolver {
	return &Resolver{
		Workdir:           workdir,
		MusicDirectory:    musicDir,
		Cache:             cache,
		CoverImageNames:   coverImageNames,
		ThumbnailNames:    thumbnailNames,
		CovercacheEnabled: covercacheEnabled,
	}
}

// Resolve runs the cascade for one song URI, stopping at the first source
// that yields an image. Stream URIs are diverted to ResolveStream entirely
// (spec §4.7 step 1) before any of the covercache/filesystem/tag steps
// below, which only apply to library files. offset selects which embedded
// picture to try when a media file carries more than one; it keys the
// covercache lookup and the tag extraction, and the filesystem cover-name
// probe runs only for offset 0, matching the original's "offset == 0"
// guard on cover-name probing.
func (r *Resolver) Resolve(uri string, size Size, offset int) (Image, bool) {
	if IsStreamURI(uri) {
		result := r.ResolveStream(uri)
		return result.Image, result.Found
	}

	if img, ok := r.Cache.Lookup(uri, offset); ok {
		return img, true
	}

	if offset == 0 && r.MusicDirectory != "" {
		if img, ok := r.probeDirectory(uri, size); ok {
			return img, true
		}
	}

	if r.MusicDirectory != "" {
		mediaFile := filepath.Join(r.MusicDirectory, uri)
		if img, ok := extractEmbedded(mediaFile, offset); ok {
			if r.CovercacheEnabled {
				if err := r.Cache.Write(uri, offset, img); err != nil {
					log.WithError(err).WithField("uri", uri).Warn("coverart: covercache write failed")
				}
			}
			return img, true
		}
	}

	return Image{}, false
}

func (r *Resolver) probeDirectory(uri string, size Size) (Image, bool) {
	dir := filepath.Join(r.MusicDirectory, filepath.Dir(uri))
	names := r.CoverImageNames
	if size == SizeThumb && len(r.ThumbnailNames) > 0 {
		names = r.ThumbnailNames
	}
	path := probeNames(dir, names)
	if path == "" {
		return Image{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, false
	}
	return Image{MimeType: mimeByExt(path), Data: data}, true
}

// ResolveFromMPD asks MPD for the song's embedded albumart, the last
// fallback before the placeholder image (spec §4.7 "MPD albumart";
// original comment "mpd can read only first image" — hence no offset
// parameter here).
func ResolveFromMPD(client *mpd.Client, uri string) (Image, bool) {
	data, err := client.AlbumArt(uri)
	if err != nil || len(data) == 0 {
		return Image{}, false
	}
	return Image{MimeType: sniffImageMime("", data), Data: data}, true
}

func mimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}
