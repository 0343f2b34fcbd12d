// Package tags implements myMPD's tag taxonomy: which tags are multi-value,
// scalar/JSON formatting, sort-tag fallback and tag-type negotiation with
// MPD (spec §4.3, component C5).
package tags

import (
	"path"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mympdd/internal/container"
)

// Song is the subset of an MPD song's attributes the tag model and album
// cache need. Multi-value tags are represented as string slices since MPD
// returns repeated tag lines for them (spec §3 "Album record", §4.2).
type Song struct {
	URI          string
	LastModified int64 // unix seconds
	DurationSec  float64
	Tags         map[string][]string
}

// Get returns the first value of tag, or "" if absent.
func (s *Song) Get(tag string) string {
	if v := s.Tags[tag]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// All returns every value of tag.
func (s *Song) All(tag string) []string {
	return s.Tags[tag]
}

// multiValueTags is the exact set spec §4.2 lists.
var multiValueTags = map[string]bool{
	"Artist":                    true,
	"ArtistSort":                true,
	"AlbumArtist":               true,
	"AlbumArtistSort":           true,
	"Genre":                     true,
	"Composer":                  true,
	"ComposerSort":              true,
	"Performer":                 true,
	"Conductor":                 true,
	"Ensemble":                  true,
	"MusicBrainzArtistId":       true,
	"MusicBrainzAlbumArtistId":  true,
}

// IsMultiValue reports whether tag stores more than one value per song.
func IsMultiValue(tag string) bool {
	return multiValueTags[tag]
}

// sortTagFallback maps a sortable tag to its *Sort pendant (spec §4.3).
var sortTagFallback = map[string]string{
	"Artist":      "ArtistSort",
	"AlbumArtist": "AlbumArtistSort",
	"Album":       "AlbumSort",
	"Composer":    "ComposerSort",
	"Title":       "TitleSort",
}

// wireSortTagNames translates API-facing sort field names that don't match
// their MPD wire-protocol tag token verbatim (spec §8 scenario 3: the
// "LastModified" sort field issues an MPD "Last-Modified" tag).
var wireSortTagNames = map[string]string{
	"LastModified": "Last-Modified",
}

// SortClause builds the "<tag> <asc|desc>" operand that follows "sort" in
// an advanced search, running tag first through the *Sort-pendant fallback and then
// through wireSortTagNames (spec §8 scenario 3, §4.3 sort-tag fallback).
func SortClause(tag string, sortDesc bool, enabled []string) string {
	resolved := SortTag(tag, enabled)
	if wire, ok := wireSortTagNames[resolved]; ok {
		resolved = wire
	}
	if sortDesc {
		return resolved + " desc"
	}
	return resolved + " asc"
}

// SortTag returns the tag to sort by given the currently enabled tag set:
// the *Sort pendant if tag has one and it is enabled, else tag itself
// (spec §4.3 "Sort-tag fallback", §8 "Sort-tag fallback" property).
func SortTag(tag string, enabled []string) string {
	sortTag, ok := sortTagFallback[tag]
	if !ok {
		return tag
	}
	for _, t := range enabled {
		if t == sortTag {
			return sortTag
		}
	}
	return tag
}

var caseFold = cases.Lower(language.Und)

// FoldLower lowercases s using full Unicode casing semantics, not just
// ASCII (spec §4.2 "Lowercase the concatenation with full Unicode
// semantics").
func FoldLower(s string) string {
	return caseFold.String(s)
}

// ScalarValue renders tag as its human-readable display form: multiple
// values joined with ", "; Title falls back to Name then basename(uri)
// (spec §4.3 "Scalar form").
func ScalarValue(s *Song, tag string) string {
	values := s.All(tag)
	if len(values) == 0 && tag == "Title" {
		if name := s.Get("Name"); name != "" {
			return name
		}
		return path.Base(s.URI)
	}
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ", ")
}

// JSONValues renders tag as the list of values its JSON form should emit:
// multi-value tags emit every value (MusicBrainz id tags are additionally
// split on ';' and trimmed, working around an MPD quirk), single-value
// tags emit at most one value. An empty result should be rendered by the
// caller as "-" / ["-"] (spec §4.3).
func JSONValues(s *Song, tag string) []string {
	values := s.All(tag)
	if tag == "MusicBrainzArtistId" || tag == "MusicBrainzAlbumArtistId" {
		var split []string
		for _, v := range values {
			for _, part := range strings.Split(v, ";") {
				part = strings.TrimSpace(part)
				if part != "" {
					split = append(split, part)
				}
			}
		}
		return split
	}
	if !IsMultiValue(tag) && len(values) > 1 {
		values = values[:1]
	}
	if tag == "Title" && len(values) == 0 {
		if name := s.Get("Name"); name != "" {
			return []string{name}
		}
		return []string{path.Base(s.URI)}
	}
	return values
}

// WriteJSON appends tag's JSON form to buf: an array for multi-value tags,
// a single string otherwise; "-"/["-"] for an empty tag set (spec §4.3).
func WriteJSON(buf *container.Buffer, s *Song, tag string) {
	values := JSONValues(s, tag)
	if IsMultiValue(tag) || tag == "MusicBrainzArtistId" || tag == "MusicBrainzAlbumArtistId" {
		buf.WriteJSONStrings(values)
		return
	}
	if len(values) == 0 {
		buf.WriteJSONString("-")
		return
	}
	buf.WriteJSONString(values[0])
}

// NegotiateTagTypes issues disable-all/enable-all/enable-set to MPD inside
// a single command list so the visible tag set transitions atomically —
// no idle window where a concurrent `tagtypes` query would observe an
// empty set between the clear and the enable (spec §4.3 "Tag-type
// negotiation"). An empty wanted set enables every tag (enable-all);
// otherwise MPD's tag set is cleared then the wanted tags enabled, both
// inside one `command_list_begin`/`command_list_end` block via
// gompd's BeginCommandList.
func NegotiateTagTypes(client *mpd.Client, wanted []string) error {
	if len(wanted) == 0 {
		return client.TagTypesAll()
	}
	cmdList := client.BeginCommandList()
	cmdList.TagTypesClear()
	cmdList.TagTypesEnable(wanted...)
	return cmdList.End()
}
