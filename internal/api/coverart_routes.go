package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"mympdd/internal/coverart"
	"mympdd/internal/heart"
)

// placeholderPNG is a 1x1 transparent PNG served when no cover-art source
// produces an image (spec §4.7 "placeholder", §6 "Cover-art fallback").
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

const imageCacheControl = "max-age=604800"

func writeImage(w http.ResponseWriter, img coverart.Image) {
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Write(img.Data)
}

func writePlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(placeholderPNG)
}

// writeStreamPlaceholder serves the fallback for a webradio/stream URI that
// resolved to nothing (spec §4.7 step 1's final "serve the stream
// placeholder image", distinct from the generic placeholder the way
// albumart.c's webserver_serve_stream_image is distinct from
// webserver_serve_na_image). The two happen to share one image; what
// matters is the call site, not the bytes.
func writeStreamPlaceholder(w http.ResponseWriter) {
	writePlaceholder(w)
}

// serveCoverArt runs the full §4.7 cascade for one uri/size/offset,
// diverting stream URIs to the stream-URI step (including a redirect to
// the cover-cache proxy when the webradio's #EXTIMG names an external URL)
// before falling through to the covercache/filesystem/tag/MPD steps that
// only apply to library files.
func (s *Server) serveCoverArt(w http.ResponseWriter, r *http.Request, uri string, size coverart.Size, offset int) {
	if uri == "" {
		writePlaceholder(w)
		return
	}

	if coverart.IsStreamURI(uri) {
		result := s.Cover.ResolveStream(uri)
		switch {
		case result.RedirectURL != "":
			redirectURI := "proxy-covercache?uri=" + url.QueryEscape(result.RedirectURL)
			http.Redirect(w, r, redirectURI, http.StatusFound)
		case result.Found:
			writeImage(w, result.Image)
		default:
			writeStreamPlaceholder(w)
		}
		return
	}

	if img, ok := s.Cover.Resolve(uri, size, offset); ok {
		writeImage(w, img)
		return
	}

	if offset == 0 {
		if img, ok := s.resolveFromMPD(uri); ok {
			writeImage(w, img)
			return
		}
	}
	writePlaceholder(w)
}

// handleAlbumArt implements GET /albumart and /albumart-thumb (spec §6 and
// §4.7): stream URI → covercache → filesystem → embedded tag extraction →
// MPD albumart → placeholder.
func (s *Server) handleAlbumArt(size coverart.Size) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		offset := atoiOr(r.URL.Query().Get("offset"), 0)
		s.serveCoverArt(w, r, uri, size, offset)
	}
}

// handleAlbumArtByID implements GET /albumart/{albumid}: resolve the
// album's first-seen song URI through the cache, then run the same cascade.
func (s *Server) handleAlbumArtByID(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumid")
	album := s.Albums.Lookup(albumID)
	if album == nil {
		writePlaceholder(w)
		return
	}
	s.serveCoverArt(w, r, album.URI, coverart.SizeFull, 0)
}

// handlePlaylistArt implements GET /playlistart?playlist=<name>&type=<smartpls|playlist>:
// covers for playlists are taken from their first song.
func (s *Server) handlePlaylistArt(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("playlist")
	if name == "" {
		writePlaceholder(w)
		return
	}

	uri, ok := s.firstPlaylistSongURI(r.Context(), name)
	if !ok {
		writePlaceholder(w)
		return
	}
	s.serveCoverArt(w, r, uri, coverart.SizeThumb, 0)
}

// handleProxyCovercache implements GET /proxy-covercache?uri=<full-url>:
// webradio stream metadata sometimes advertises cover art by an external
// URL (e.g. an #EXTIMG entry); this fetches it once and serves it from the
// local covercache on subsequent requests (spec §6).
func (s *Server) handleProxyCovercache(w http.ResponseWriter, r *http.Request) {
	remote := r.URL.Query().Get("uri")
	if remote == "" {
		writePlaceholder(w)
		return
	}

	if img, ok := s.CoverCache.Lookup(remote, 0); ok {
		writeImage(w, img)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		writePlaceholder(w)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		writePlaceholder(w)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writePlaceholder(w)
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		writePlaceholder(w)
		return
	}
	img := coverart.Image{MimeType: resp.Header.Get("Content-Type"), Data: data}
	if err := s.CoverCache.Write(remote, 0, img); err != nil {
		writePlaceholder(w)
		return
	}
	writeImage(w, img)
}

// resolveFromMPD asks the idle loop to run MPD's albumart command, the last
// cascade step before the placeholder (spec §6's "MPD albumart command"
// bullet; §4.1 "MPD wrapper (C3) directly").
func (s *Server) resolveFromMPD(uri string) (coverart.Image, bool) {
	id := atomic.AddInt64(&s.nextID, 1)
	result := make(chan coverart.Image, 1)
	found := make(chan bool, 1)

	s.Heart.Requests.Push(&heart.Request{
		ID: id,
		Handle: func(h *heart.Heart) heart.Response {
			client := h.Client()
			if client == nil {
				return heart.Response{Err: errNoMPD}
			}
			img, ok := coverart.ResolveFromMPD(client, uri)
			result <- img
			found <- ok
			return heart.Response{}
		},
	}, id)

	resp, ok := s.Heart.Responses.Shift(requestTimeout, id)
	if !ok || resp.Err != nil {
		return coverart.Image{}, false
	}
	// Handle already ran to completion (and sent on both channels) before
	// the response it returned was pushed, so these receives never block.
	return <-result, <-found
}

// firstPlaylistSongURI asks the idle loop for a playlist's first entry.
func (s *Server) firstPlaylistSongURI(_ context.Context, name string) (string, bool) {
	id := atomic.AddInt64(&s.nextID, 1)
	s.Heart.Requests.Push(&heart.Request{
		ID: id,
		Handle: func(h *heart.Heart) heart.Response {
			client := h.Client()
			if client == nil {
				return heart.Response{Err: errNoMPD}
			}
			songs, err := client.PlaylistContents(name)
			if err != nil || len(songs) == 0 {
				return heart.Response{Err: errNotFoundPlaylist}
			}
			return heart.Response{Result: songs[0]["file"]}
		},
	}, id)

	resp, ok := s.Heart.Responses.Shift(requestTimeout, id)
	if !ok || resp.Err != nil {
		return "", false
	}
	uri, ok := resp.Result.(string)
	return uri, ok && uri != ""
}

var errNotFoundPlaylist = &rpcError{Facility: "playlist", Severity: "warn", Message: "Playlist not found or empty"}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}
