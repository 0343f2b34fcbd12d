// Package lastplayed implements the in-memory last-played ring and its
// append-prefixed on-disk flush (spec §3 "Last-played record", §6
// "state/last_played"). Grounded on
// original_source/src/mympd_api/mympd_api_last_played.c.
//
// The original's exact tmp-file/append-tail interaction is unspecified for
// a truncated old file (spec §9 Open Questions); this package reimplements
// it as a most-recent-first log that each flush rewrites atomically (new
// entries first, trimmed to keepCount), skipping corrupted lines with a
// warning (SPEC_FULL.md Open Question 2).
package lastplayed

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mympdd/internal/stateio"
)

// Entry is one last-played record (spec §3).
type Entry struct {
	URI      string
	PlayedAt time.Time
}

// flushThreshold is the ring size spec §3 names ("flushed ... when the ring
// exceeds 9 or the configured keep-count").
const flushThreshold = 9

// Ring holds the most recent entries in memory, flushing to disk once it
// grows past flushThreshold or keepCount.
type Ring struct {
	path      string
	keepCount int
	entries   []Entry
}

// New returns a Ring backed by the file at path, keeping at most keepCount
// entries once flushed.
func New(path string, keepCount int) *Ring {
	return &Ring{path: path, keepCount: keepCount}
}

// Add appends a play record to the in-memory ring and flushes to disk once
// the ring exceeds flushThreshold or keepCount, whichever is smaller (spec
// §3 "Kept in an in-memory ring of up to N entries; flushed to an
// append-prefixed file when the ring exceeds 9 or the configured
// keep-count").
func (r *Ring) Add(uri string, playedAt time.Time) error {
	r.entries = append([]Entry{{URI: uri, PlayedAt: playedAt}}, r.entries...)

	limit := flushThreshold
	if r.keepCount > 0 && r.keepCount < limit {
		limit = r.keepCount
	}
	if len(r.entries) > limit {
		return r.Flush()
	}
	return nil
}

// Flush prepends the in-memory ring to the on-disk log, trims to keepCount,
// and writes the result back atomically.
func (r *Ring) Flush() error {
	existing, err := r.load()
	if err != nil {
		return err
	}

	merged := append(append([]Entry{}, r.entries...), existing...)
	if r.keepCount > 0 && len(merged) > r.keepCount {
		merged = merged[:r.keepCount]
	}

	var buf bytes.Buffer
	for _, e := range merged {
		fmt.Fprintf(&buf, "%d::%s\n", e.PlayedAt.Unix(), e.URI)
	}
	if err := stateio.WriteFile(r.path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	r.entries = nil
	return nil
}

// load reads the on-disk log, skipping corrupted lines with a warning
// rather than failing outright (SPEC_FULL.md Open Question 2).
func (r *Ring) load() ([]Entry, error) {
	data, err := stateio.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, "::")
		if idx < 0 {
			log.WithField("line", line).Warn("lastplayed: skipping corrupted line")
			continue
		}
		sec, err := strconv.ParseInt(line[:idx], 10, 64)
		if err != nil {
			log.WithField("line", line).Warn("lastplayed: skipping corrupted line")
			continue
		}
		entries = append(entries, Entry{
			URI:      line[idx+2:],
			PlayedAt: time.Unix(sec, 0),
		})
	}
	return entries, nil
}

// Recent returns up to n most-recently-played entries, most recent first,
// combining the in-memory ring with the on-disk log and capped at keepCount.
func (r *Ring) Recent(n int) ([]Entry, error) {
	existing, err := r.load()
	if err != nil {
		return nil, err
	}
	merged := append(append([]Entry{}, r.entries...), existing...)
	if r.keepCount > 0 && len(merged) > r.keepCount {
		merged = merged[:r.keepCount]
	}
	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	return merged, nil
}
