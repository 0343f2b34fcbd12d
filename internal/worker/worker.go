// Package worker implements myMPD's detached task model: a long-running
// job (album-cache rebuild, smart-playlist regeneration) that gets its own
// MPD connection instead of borrowing the idle loop's, so it never blocks
// command servicing (spec §4.6, component C9). Grounded on
// original_source/src/mpd_worker/mpd_worker.c and mpd_worker_api.c.
package worker

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mympdd/internal/albumcache"
	"mympdd/internal/mpdconn"
	"mympdd/internal/queue"
	"mympdd/internal/tags"
)

// Command identifies which long-running job a worker should run (spec
// §4.6's three named commands).
type Command string

const (
	CommandCachesCreate       Command = "CACHES_CREATE"
	CommandSmartplsUpdate     Command = "SMARTPLS_UPDATE"
	CommandSmartplsUpdateAll  Command = "SMARTPLS_UPDATE_ALL"
)

// SmartPlaylist is a rule-defined playlist regenerated periodically (spec
// §GLOSSARY "Smart playlist"). Expr is passed to MPD's search verbatim as
// alternating tag/value pairs (e.g. "Genre", "Jazz").
type SmartPlaylist struct {
	Name       string
	Expr       []string
	MaxEntries int
	SortTag    string
}

// Job is one unit of detached work (spec §4.6 "worker record": a copy of
// relevant MPD host/port/password, tag configuration, and smart-playlist
// parameters).
type Job struct {
	Command        Command
	RequestID      int64
	ConnID         int64 // -1 when nobody is waiting on a direct response
	JobID          string // correlation id stamped by Dispatch, for log tracing
	Playlist       string
	SmartPlaylists []SmartPlaylist // used by SMARTPLS_UPDATE_ALL
	Force          bool
}

// Result is pushed to the response queue (direct reply) or surfaced as a
// WebSocket notification, mirroring mpd_worker_api's dual delivery path.
type Result struct {
	RequestID int64
	ConnID    int64
	Notify    string // WebSocket event name, "" if this is a direct reply only
	Facility  string
	Severity  string
	Message   string
	Err       error
}

// Pool launches and tracks detached worker tasks. Pool itself holds no MPD
// connection; each Dispatch call opens and closes its own (spec §4.6
// "Concurrency rule").
type Pool struct {
	Network, Address, Password string
	EnabledTags                []string
	SmartplsEnabled            bool

	Albums  *albumcache.Cache
	Results *queue.Queue[*Result]

	active int32
}

// New returns a Pool ready to Dispatch jobs against the given MPD target.
func New(network, address, password string, albums *albumcache.Cache) *Pool {
	return &Pool{
		Network: network,
		Address: address,
		Password: password,
		Albums:  albums,
		Results: queue.New[*Result]("worker-results"),
	}
}

// Active returns the number of worker tasks currently running, mirroring
// the original's process-wide worker_threads counter (spec §4.6
// "Completion is signalled by decrementing a process-wide worker_threads
// counter").
func (p *Pool) Active() int {
	return int(atomic.LoadInt32(&p.active))
}

// Dispatch launches job as a detached goroutine and returns immediately
// (spec §4.6 "launches a detached task"). The idle loop never joins it;
// results arrive later on p.Results. Dispatch stamps a fresh correlation id
// onto the job for tracing through logs, distinct from RequestID, which
// exists only to route the eventual Result back to the right queue waiter.
func (p *Pool) Dispatch(job Job) {
	job.JobID = uuid.NewString()
	atomic.AddInt32(&p.active, 1)
	go func() {
		defer atomic.AddInt32(&p.active, -1)
		p.run(job)
	}()
}

func (p *Pool) run(job Job) {
	log.WithFields(log.Fields{"command": job.Command, "job_id": job.JobID}).Info("worker: starting")
	conn, err := mpdconn.Connect(p.Network, p.Address, p.Password)
	if err != nil {
		p.Results.Push(&Result{RequestID: job.RequestID, ConnID: job.ConnID, Err: err}, job.RequestID)
		return
	}
	defer conn.Close()

	if err := tags.NegotiateTagTypes(conn.Client(), p.EnabledTags); err != nil {
		log.WithError(err).Warn("worker: tag negotiation failed")
	}

	switch job.Command {
	case CommandCachesCreate:
		p.runCachesCreate(conn, job)
	case CommandSmartplsUpdate:
		result := p.updateSmartPlaylist(conn, job, findSmartPlaylist(job.SmartPlaylists, job.Playlist))
		p.Results.Push(result, job.RequestID)
	case CommandSmartplsUpdateAll:
		p.runSmartplsUpdateAll(conn, job)
	default:
		p.Results.Push(&Result{RequestID: job.RequestID, ConnID: job.ConnID, Err: fmt.Errorf("unknown worker command %q", job.Command)}, job.RequestID)
	}
	log.WithFields(log.Fields{"command": job.Command, "job_id": job.JobID}).Info("worker: finished")
}

func findSmartPlaylist(list []SmartPlaylist, name string) SmartPlaylist {
	for _, spl := range list {
		if spl.Name == name {
			return spl
		}
	}
	return SmartPlaylist{Name: name}
}

// cacheWantedTags is the set of tags copied into every album aggregate
// during a cache rebuild (spec §4.2 step 3's "for each wanted tag").
var cacheWantedTags = []string{
	"Artist", "ArtistSort", "Album", "AlbumSort", "AlbumArtist",
	"AlbumArtistSort", "Genre", "Date", "Composer", "Performer",
}

// runCachesCreate rebuilds the album cache from a full library scan and
// swaps it in atomically (spec §4.2 "Atomic rebuild", §4.6 "The album
// cache is only written by the worker whose task is CACHES_CREATE; reads
// from the idle loop are allowed only after the swap").
func (p *Pool) runCachesCreate(conn *mpdconn.Conn, job Job) {
	rows, err := conn.Client().ListAllInfo("/")
	if err != nil {
		p.Results.Push(&Result{
			RequestID: job.RequestID, ConnID: job.ConnID, Err: err,
			Facility: "database", Severity: "error", Message: "Album cache rebuild failed",
		}, job.RequestID)
		return
	}

	songs := make(chan *tags.Song, 64)
	go func() {
		defer close(songs)
		for _, row := range rows {
			uri, ok := row["file"]
			if !ok {
				continue
			}
			songs <- attrsToSong(uri, row)
		}
	}()

	built := albumcache.Build(songs, cacheWantedTags)
	p.Albums.Swap(built)

	p.Results.Push(&Result{
		RequestID: job.RequestID, ConnID: job.ConnID,
		Notify: "update_database", Facility: "database", Severity: "info",
		Message: fmt.Sprintf("Album cache rebuilt: %d albums", built.Len()),
	}, job.RequestID)
}

// attrsToSong converts one MPD song reply into the tag model's Song shape.
// gompd's Attrs is a flat map[string]string, so it cannot preserve
// repeated tag lines the way the raw MPD wire protocol does for
// multi-value tags (e.g. two songs contributing two different Artist
// values keep both, but a single song's own second Artist line is lost
// upstream of this package) — accepted limitation of the vendored client.
func attrsToSong(uri string, row map[string]string) *tags.Song {
	s := &tags.Song{URI: uri, Tags: map[string][]string{}}
	for _, tag := range cacheWantedTags {
		if v, ok := row[tag]; ok && v != "" {
			s.Tags[tag] = []string{v}
		}
	}
	if v, ok := row["Title"]; ok {
		s.Tags["Title"] = []string{v}
	}
	if v, ok := row["Disc"]; ok {
		s.Tags["Disc"] = []string{v}
	}
	if v, ok := row["duration"]; ok {
		fmt.Sscanf(v, "%f", &s.DurationSec)
	}
	if v, ok := row["Last-Modified"]; ok {
		var lm int64
		fmt.Sscanf(v, "%d", &lm)
		s.LastModified = lm
	}
	return s
}

// updateSmartPlaylist regenerates a single smart playlist by running its
// search expression and replacing the playlist's contents with a
// clear-then-add command sequence (grounded on the clear/load pattern in
// original_source/src/mympd_api/mympd_api_queue.c's
// mympd_api_queue_replace_with_playlist), returning the result rather than
// pushing it so SMARTPLS_UPDATE_ALL can tally failures across playlists.
func (p *Pool) updateSmartPlaylist(conn *mpdconn.Conn, job Job, spl SmartPlaylist) *Result {
	if !p.SmartplsEnabled {
		return &Result{
			RequestID: job.RequestID, ConnID: job.ConnID,
			Facility: "playlist", Severity: "error", Message: "Smart playlists are disabled",
		}
	}

	songs, err := conn.Client().Search(spl.Expr...)
	if err != nil {
		return &Result{
			RequestID: job.RequestID, ConnID: job.ConnID, Err: err,
			Facility: "playlist", Severity: "error",
			Message: fmt.Sprintf("Updating smart playlist %s failed", spl.Name),
		}
	}

	if spl.SortTag != "" {
		sort.SliceStable(songs, func(i, j int) bool {
			a, b := songs[i][spl.SortTag], songs[j][spl.SortTag]
			if a != b {
				return a < b
			}
			return songs[i]["file"] < songs[j]["file"]
		})
	}
	uris := make([]string, 0, len(songs))
	for _, s := range songs {
		uris = append(uris, s["file"])
	}
	if spl.MaxEntries > 0 && len(uris) > spl.MaxEntries {
		uris = uris[:spl.MaxEntries]
	}

	if err := conn.Client().PlaylistClear(spl.Name); err != nil {
		log.WithError(err).Debug("smart playlist did not exist yet, creating")
	}
	for _, uri := range uris {
		if err := conn.Client().PlaylistAdd(spl.Name, uri); err != nil {
			return &Result{
				RequestID: job.RequestID, ConnID: job.ConnID, Err: err,
				Facility: "playlist", Severity: "error",
				Message: fmt.Sprintf("Updating smart playlist %s failed", spl.Name),
			}
		}
	}

	return &Result{
		RequestID: job.RequestID, ConnID: job.ConnID,
		Notify: "update_stored_playlist", Facility: "playlist", Severity: "info",
		Message: fmt.Sprintf("Smart playlist %s updated", spl.Name),
	}
}

// runSmartplsUpdateAll regenerates every configured smart playlist in
// turn, pushing a per-playlist result for each, then one summary
// notification (spec §4.6; grounded on mpd_worker_api.c's
// MYMPD_API_SMARTPLS_UPDATE_ALL case).
func (p *Pool) runSmartplsUpdateAll(conn *mpdconn.Conn, job Job) {
	if !p.SmartplsEnabled {
		p.Results.Push(&Result{
			RequestID: job.RequestID, ConnID: job.ConnID,
			Facility: "playlist", Severity: "error", Message: "Smart playlists are disabled",
		}, job.RequestID)
		return
	}

	failed := 0
	for _, spl := range job.SmartPlaylists {
		result := p.updateSmartPlaylist(conn, job, spl)
		p.Results.Push(result, job.RequestID)
		if result.Err != nil {
			failed++
		}
	}

	msg := "Smart playlists updated"
	severity := "info"
	if failed > 0 {
		msg = fmt.Sprintf("%d smart playlists failed to update", failed)
		severity = "error"
	}
	p.Results.Push(&Result{
		RequestID: job.RequestID, ConnID: job.ConnID,
		Notify: "update_stored_playlist", Facility: "playlist", Severity: severity, Message: msg,
	}, job.RequestID)
}
