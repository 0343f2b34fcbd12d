package coverart

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
)

// extractEmbedded pulls the offset'th embedded picture out of an MP3,
// FLAC, or Ogg-FLAC media file, grounded on
// handle_coverextract_id3/handle_coverextract_flac (spec §4.7 "embedded
// tag extraction").
func extractEmbedded(mediaFile string, offset int) (Image, bool) {
	switch mimeTypeByExt(mediaFile) {
	case "audio/mpeg":
		return extractID3(mediaFile, offset)
	case "audio/flac", "audio/ogg":
		return extractFLACPicture(mediaFile, offset)
	}
	return Image{}, false
}

// extractID3 reads the offset'th APIC frame from an MP3's ID3v2 tag.
func extractID3(mediaFile string, offset int) (Image, bool) {
	tag, err := id3v2.Open(mediaFile, id3v2.Options{Parse: true, ParseFrames: map[string][]string{"Attached picture": {}}})
	if err != nil {
		return Image{}, false
	}
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	if offset < 0 || offset >= len(frames) {
		return Image{}, false
	}
	pic, ok := frames[offset].(id3v2.PictureFrame)
	if !ok || len(pic.Picture) == 0 {
		return Image{}, false
	}
	return Image{MimeType: sniffImageMime(pic.MimeType, pic.Picture), Data: pic.Picture}, true
}

// extractFLACPicture reads the offset'th PICTURE metadata block from a
// FLAC or Ogg-FLAC file.
func extractFLACPicture(mediaFile string, offset int) (Image, bool) {
	f, err := flac.ParseFile(mediaFile)
	if err != nil {
		return Image{}, false
	}

	found := 0
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			continue
		}
		if found != offset {
			found++
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*block)
		if err != nil || len(pic.ImageData) == 0 {
			return Image{}, false
		}
		return Image{MimeType: sniffImageMime(pic.MIME, pic.ImageData), Data: pic.ImageData}, true
	}
	return Image{}, false
}

// sniffImageMime prefers the tag-declared mime type if it looks like an
// image; otherwise it returns whatever http.DetectContentType reports for
// the bytes. It never rejects an image.
func sniffImageMime(declared string, data []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}

func mimeTypeByExt(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".ogg"), strings.HasSuffix(lower, ".oga"):
		return "audio/ogg"
	case strings.HasSuffix(lower, ".flac"):
		return "audio/flac"
	default:
		return fmt.Sprintf("application/octet-stream; ext=%s", lower)
	}
}
