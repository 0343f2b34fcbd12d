package coverart

import (
	"os"
	"path/filepath"
	"strings"
)

// dirPicsThumbs and dirWebradios are workdir-relative, mirroring
// DIR_WORK_PICS_THUMBS/DIR_WORK_WEBRADIOS (spec §6 persisted state layout).
const (
	dirPicsThumbs = "pics/thumbs"
	dirWebradios  = "webradios"
)

// IsStreamURI reports whether uri names a network stream rather than a
// library-relative file path. Grounded on the call sites of is_streamuri
// (not itself retrieved in the pack) across albumart.c, playlistart.c, and
// mympd_api_queue.c/mympd_api_last_played.c, which all gate on "does this
// URI carry a scheme" before treating it as something other than a file
// under music_directory.
func IsStreamURI(uri string) bool {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// sanitizeFilename turns a stream URI into a safe basename for
// workdir/pics/thumbs and workdir/webradios lookups, grounded on
// albumart.c's sanitize_filename call ahead of its pics/thumbs and
// webradios.m3u probes (the function body itself was not retrieved in the
// pack, so only its effect — a filesystem-safe name free of path
// separators — is reproduced here).
func sanitizeFilename(uri string) string {
	var b strings.Builder
	b.Grow(len(uri))
	for _, r := range uri {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// readEXTIMG extracts the #EXTIMG field from a webradio m3u file, grounded
// on albumart.c's m3u_get_field(sdsempty(), "#EXTIMG", webradio_file). The
// field is written as "#EXTIMG:<value>" on its own line, following the
// extended-M3U convention shared with "#EXTINF:".
func readEXTIMG(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "#EXTIMG:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// StreamResult is the outcome of the stream-URI cascade step. Exactly one
// of Found or RedirectURL is meaningful when either is set: a local thumb was
// read (Found, Image set) or the webradio m3u's #EXTIMG names an external
// URL the caller should redirect the cover-cache proxy at (RedirectURL).
type StreamResult struct {
	Image       Image
	Found       bool
	RedirectURL string
}

// ResolveStream runs cascade step 1 (spec §4.7): sanitize the stream URI,
// look for a local thumb under workdir/pics/thumbs/<safe>.*, and failing
// that read workdir/webradios/<safe>.m3u for an #EXTIMG field — an external
// URL there is reported as RedirectURL (the caller sends the client to the
// cover-cache proxy), a bare name is read as a second local thumb.
// Grounded on albumart.c's is_streamuri/sanitize_filename branch of
// request_handler_albumart_by_uri.
func (r *Resolver) ResolveStream(uri string) StreamResult {
	if r.Workdir == "" {
		return StreamResult{}
	}
	safe := sanitizeFilename(uri)
	if safe == "" {
		return StreamResult{}
	}

	thumbsDir := filepath.Join(r.Workdir, dirPicsThumbs)
	if path := resolveCandidate(thumbsDir, safe); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return StreamResult{Found: true, Image: Image{MimeType: mimeByExt(path), Data: data}}
		}
	}

	webradioFile := filepath.Join(r.Workdir, dirWebradios, safe+".m3u")
	extimg := readEXTIMG(webradioFile)
	if extimg == "" {
		return StreamResult{}
	}
	if IsStreamURI(extimg) {
		return StreamResult{RedirectURL: extimg}
	}
	path := filepath.Join(thumbsDir, extimg)
	data, err := os.ReadFile(path)
	if err != nil {
		return StreamResult{}
	}
	return StreamResult{Found: true, Image: Image{MimeType: mimeByExt(path), Data: data}}
}
