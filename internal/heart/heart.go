// Package heart implements the MPD idle loop: the single-threaded state
// machine that multiplexes waiting for MPD push events, serving inbound
// API requests, ticking timers, draining the sticker backlog, and
// reconnecting with backoff (spec §4.5, component C8 — "the hardest
// engineered piece"). Grounded on
// original_source/src/mpd_client/mpd_client_idle.c.
//
// The original drives its wait with poll() on the raw libmpdclient socket
// fd. fhs/gompd/v2 does not expose that fd, so Heart instead polls its
// watcher's Event/Error channels with a bounded select alongside the API
// queue shift, which is the channel-native equivalent of the same "wait
// with a timeout so every timer stays serviceable" requirement (spec §5).
package heart

import (
	"context"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"mympdd/internal/albumcache"
	"mympdd/internal/mpdconn"
	"mympdd/internal/queue"
	"mympdd/internal/tags"
	"mympdd/internal/timer"
	"mympdd/internal/trigger"
)

// pollInterval bounds every wait inside the loop so timers and the
// reconnect ladder stay serviceable (spec §5 "every wait has a timeout").
const pollInterval = 50 * time.Millisecond

const (
	cacheRebuildTimerID     = 1
	smartplsUpdateTimerID   = 2
	cacheRebuildOnDBTimerID = 3
	covercachePruneTimerID  = 4
)

// covercachePruneInterval mirrors check_covercache's "next check" cadence
// as a periodic sweep rather than a per-request check, since the idle
// loop (not the HTTP frontend) owns the only timer wheel in this design
// (spec §5 "no locks are needed for those structures").
const covercachePruneInterval = 24 * time.Hour

const (
	scrobbleHalfPlayedCap = 4 * time.Minute
	skipGuardMinElapsed   = 10 * time.Second
	jukeboxLeadSeconds    = 10 * time.Second
)

// StickerJob is a deferred sticker write, queued during idle handling and
// drained between idle reentries (spec §3 "Sticker job").
type StickerJob struct {
	URI  string
	Kind StickerKind
}

// StickerKind enumerates the sticker job kinds spec §3 lists.
type StickerKind int

const (
	StickerPlayCountIncrement StickerKind = iota
	StickerSkipCountIncrement
	StickerLastPlayedStamp
	StickerLastSkippedStamp
)

// Event is a WebSocket notification the idle loop emits (spec §6 "event
// name" list). Method is one of update_database, update_queue,
// update_outputs, update_options, update_volume, update_player,
// update_last_played, update_stored_playlist, updatedb, mpd_connected,
// mpd_disconnected.
type Event struct {
	Method string
	Params map[string]any
}

// Request is one inbound API-queue item the heart either services directly
// or classifies as "long" and hands to a worker (spec §4.1, §4.6).
type Request struct {
	ID              int64
	MPDIndependent  bool // serviced even during WAIT (spec §4.5)
	ConnectionSave  bool // forces an instant exit from WAIT (spec §4.5)
	Handle          func(h *Heart) Response
}

// Response is pushed back onto the reply queue after a Request completes.
type Response struct {
	ID     int64
	Result any
	Err    error
}

// LastPlayed is the minimal collaborator the heart needs from
// internal/lastplayed, kept as an interface so heart does not import a
// concrete ring type it only ever appends to.
type LastPlayed interface {
	Add(uri string, playedAt time.Time) error
}

// CovercachePruner is the minimal collaborator the heart needs from
// internal/coverart to drive time-based cache eviction from the idle
// loop's own timer wheel (spec §4.7 "Cover-cache retention is
// time-based... deleted on next check").
type CovercachePruner interface {
	Prune(keepDays int) (int, error)
}

// Heart is the idle loop (spec §4.5). It owns the MPD state, timer wheel,
// trigger registry, sticker backlog and last-played ring exclusively:
// nothing outside the idle-loop goroutine touches them (spec §5 "No locks
// are needed for those structures"). The album cache is the exception: the
// worker pool swaps in rebuilt snapshots and the API reads it from HTTP
// goroutines, which albumcache.Cache's atomic swap makes safe.
type Heart struct {
	Network, Address, Password string

	Requests  *queue.Queue[*Request]
	Responses *queue.Queue[*Response]
	Events    *queue.Queue[Event]

	Timers   *timer.Wheel
	Triggers *trigger.Registry
	Albums   *albumcache.Cache

	LastPlayed LastPlayed

	Covercache         CovercachePruner
	CovercacheKeepDays int

	EnabledTags       []string
	JukeboxEnabled    bool
	JukeboxTarget     int
	AutoPlay          bool

	WantWorker func(command string, req *Request)

	conn  *mpdconn.Conn
	state mpdconn.State

	stickerBacklog []StickerJob

	shuttingDown bool
}

// New returns an idle loop ready to Run against the given MPD target.
func New(network, address, password string) *Heart {
	return &Heart{
		Network:   network,
		Address:   address,
		Password:  password,
		Requests:  queue.New[*Request]("api"),
		Responses: queue.New[*Response]("responses"),
		Events:    queue.New[Event]("events"),
		Timers:    timer.New(),
		Triggers:  trigger.New(),
		Albums:    albumcache.New(),
	}
}

// Run drives the state machine until ctx is cancelled (spec §4.5 "Exit
// conditions" — SIGTERM/SIGINT sets a shutdown flag; translated here to
// context cancellation by the caller's signal handling in cmd/mympdd).
func (h *Heart) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		default:
		}

		switch h.state.ConnState {
		case mpdconn.Disconnected:
			h.connect()
		case mpdconn.Wait:
			h.wait(ctx)
		case mpdconn.Connected:
			h.idleOnce(ctx)
		case mpdconn.Failure, mpdconn.Disconnect, mpdconn.DisconnectInstant:
			h.disconnect()
		case mpdconn.Reconnect:
			h.state.ConnState = mpdconn.Disconnected
		case mpdconn.TooOld:
			h.shutdown()
			return
		}
	}
}

// connect implements the connect path (spec §4.5 "Connect path").
func (h *Heart) connect() {
	conn, err := mpdconn.Connect(h.Network, h.Address, h.Password)
	if err != nil {
		if _, tooOld := err.(*mpdconn.ErrTooOld); tooOld {
			log.WithError(err).Error("MPD server too old, shutting down")
			h.state.ConnState = mpdconn.TooOld
			return
		}
		log.WithError(err).Warn("MPD connect failed")
		h.state.ConnState = mpdconn.Failure
		return
	}
	h.conn = conn

	h.state.ConnState = mpdconn.Connected
	h.state.ResetReconnect()
	h.emitEvent("mpd_connected", nil)

	h.state.Features = mpdconn.ProbeFeatures(conn)
	mpdconn.SetBinaryLimit(conn, 8*1024*1024)
	if err := tags.NegotiateTagTypes(conn.Client(), h.EnabledTags); err != nil {
		log.WithError(err).Warn("tag negotiation failed")
	}
	h.state.EnabledTags = h.EnabledTags

	h.Timers.Replace(cacheRebuildTimerID, 2*time.Second, 0, h.onCacheRebuildTimer, nil)
	h.Timers.Replace(smartplsUpdateTimerID, 30*time.Second, 30*time.Second, h.onSmartplsUpdateTimer, nil)
	if h.Covercache != nil {
		h.Timers.Replace(covercachePruneTimerID, time.Minute, covercachePruneInterval, h.onCovercachePruneTimer, nil)
	}
	h.Triggers.Execute(trigger.EventMyMPDConnected, "default")
}

// disconnect tears down the connection and moves to WAIT, unless this is a
// DISCONNECT_INSTANT which skips the wait phase entirely (spec §4.5
// "Reconnect backoff").
func (h *Heart) disconnect() {
	instant := h.state.ConnState == mpdconn.DisconnectInstant
	h.conn.Close()
	h.conn = nil
	h.emitEvent("mpd_disconnected", nil)
	h.Triggers.Execute(trigger.EventMyMPDDisconnected, "default")

	if instant {
		h.state.ConnState = mpdconn.Disconnected
		return
	}
	h.state.ReconnectDeadline = time.Now().Add(mpdconn.ReconnectWait(&h.state))
	h.state.ConnState = mpdconn.Wait
}

// wait services MPD-independent requests only, until the reconnect
// deadline passes (spec §4.5 "During WAIT, API requests are still serviced
// iff they are flagged MPD-independent").
func (h *Heart) wait(ctx context.Context) {
	if req, ok := h.Requests.Shift(pollInterval, 0); ok {
		if req.MPDIndependent {
			h.serviceRequest(req)
		} else {
			h.Responses.Push(&Response{ID: req.ID, Err: errDisconnected}, req.ID)
		}
		if req.ConnectionSave {
			h.state.ConnState = mpdconn.Disconnected
			return
		}
	}
	if time.Now().After(h.state.ReconnectDeadline) {
		h.state.ConnState = mpdconn.Disconnected
	}
}

var errDisconnected = &disconnectedError{}

type disconnectedError struct{}

func (*disconnectedError) Error() string { return "MPD disconnected" }

// idleOnce runs one iteration of the CONNECTED state: it waits for any of
// the ORed entry conditions (spec §4.5's bulleted list), then handles
// whichever fired.
func (h *Heart) idleOnce(ctx context.Context) {
	h.Timers.Tick(time.Now())
	h.drainStickerBacklog()
	h.checkPlayedScoring()
	h.checkJukeboxRefill()

	select {
	case event, ok := <-h.conn.Events():
		if !ok {
			h.state.ConnState = mpdconn.Failure
			return
		}
		h.handleIdleEvent(event)
	case err := <-h.conn.WatcherErrors():
		log.WithError(err).Warn("MPD watcher error")
		if mpdconn.Recover(err) == mpdconn.Lost {
			h.state.ConnState = mpdconn.Failure
		}
	case req, ok := <-h.shiftRequestChan():
		if ok {
			h.serviceRequest(req)
		}
	case <-time.After(pollInterval):
	case <-ctx.Done():
		h.shuttingDown = true
	}
}

// shiftRequestChan adapts the API queue's blocking Shift into something
// selectable alongside the MPD event channels, matching the "entry
// conditions to leave idle are ORed" requirement (spec §4.5) without
// spinning a goroutine per iteration: the queue itself already has a
// cond-variable waiter, so this just performs one short, non-blocking
// check per idleOnce call.
func (h *Heart) shiftRequestChan() <-chan *Request {
	ch := make(chan *Request, 1)
	if req, ok := h.Requests.Shift(0, 0); ok {
		ch <- req
	}
	return ch
}

// handleIdleEvent dispatches one idle-event class (spec §4.5 "Idle-event
// handling"), then executes matching triggers. Bits within a single idle
// wakeup are not modeled here since gompd's watcher delivers one event
// name per wakeup already; ascending processing order (spec §5.178) falls
// out naturally since each event is handled to completion before the next
// Events() receive.
func (h *Heart) handleIdleEvent(event string) {
	switch event {
	case "database":
		h.emitEvent("update_database", nil)
		h.Timers.Replace(cacheRebuildOnDBTimerID, 10*time.Second, 0, h.onCacheRebuildTimer, nil)
	case "stored_playlist":
		h.emitEvent("update_stored_playlist", nil)
	case "playlist": // MPD's queue idle event
		h.onQueueEvent()
	case "player":
		h.onPlayerEvent()
	case "mixer":
		h.emitEvent("update_volume", nil)
	case "output":
		h.emitEvent("update_outputs", nil)
	case "options":
		h.onQueueEvent()
		h.emitEvent("update_options", nil)
	case "update":
		h.emitEvent("updatedb", nil)
	}

	var triggerEvent trigger.Event
	switch event {
	case "database":
		triggerEvent = trigger.EventDatabase
	case "stored_playlist":
		triggerEvent = trigger.EventStoredPlaylist
	case "playlist":
		triggerEvent = trigger.EventQueue
	case "player":
		triggerEvent = trigger.EventPlayer
	case "mixer":
		triggerEvent = trigger.EventMixer
	case "output":
		triggerEvent = trigger.EventOutput
	case "options":
		triggerEvent = trigger.EventOptions
	case "update":
		triggerEvent = trigger.EventUpdate
	default:
		return
	}
	h.Triggers.Execute(triggerEvent, "default")
}

// onQueueEvent refreshes queue status and fires jukebox refill / auto-play
// as spec §4.5's "queue" bullet describes. A version that has not advanced
// belongs to another partition and is discarded.
func (h *Heart) onQueueEvent() {
	status, err := h.conn.Client().Status()
	if err != nil {
		log.WithError(err).Warn("status refresh failed")
		return
	}
	newVersion := statusAttrInt(status, "playlist")
	if newVersion == h.state.QueueVersion {
		return
	}
	previousVersion := h.state.QueueVersion
	h.state.QueueVersion = newVersion
	h.state.QueueLength = statusAttrInt(status, "playlistlength")
	h.state.PlayState = status["state"]

	if h.JukeboxEnabled && h.state.QueueLength < h.JukeboxTarget {
		h.emitEvent("update_queue", map[string]any{"reason": "jukebox-refill-due"})
	}
	if h.AutoPlay && h.state.PlayState != "play" {
		if !h.playNewlyInserted(previousVersion) {
			if err := h.conn.Client().Play(-1); err != nil {
				log.WithError(err).Debug("auto-play failed")
			}
		}
	}
}

// playNewlyInserted plays the lowest-position entry that changed since
// previousVersion, diffed via `plchangesposid` (supplements spec §4.5's
// "queue" bullet with
// original_source/src/mympd_api/mympd_api_queue.c's
// mympd_api_queue_play_newly_inserted: after a jukebox/worker insert, jump
// straight to the first newly added song instead of restarting the queue
// from position 0). Returns false if no change could be resolved, letting
// the caller fall back to a plain Play(-1).
func (h *Heart) playNewlyInserted(previousVersion int) bool {
	if previousVersion <= 0 {
		return false
	}
	changes, err := h.conn.QueueChangesSince(previousVersion)
	if err != nil || len(changes) == 0 {
		return false
	}
	first := changes[0]
	for _, c := range changes[1:] {
		if c.Pos < first.Pos {
			first = c
		}
	}
	if err := h.conn.Client().Play(first.Pos); err != nil {
		log.WithError(err).Debug("play-newly-inserted failed")
		return false
	}
	return true
}

// onPlayerEvent refreshes player status and detects a skipped song (spec
// §4.5 "player" bullet): if the previous song's scheduled-played time
// still lies in the future, it was skipped.
func (h *Heart) onPlayerEvent() {
	status, err := h.conn.Client().Status()
	if err != nil {
		log.WithError(err).Warn("status refresh failed")
		return
	}
	songID := statusAttrInt(status, "songid")
	elapsed := statusAttrFloat(status, "elapsed")

	if h.state.SongID != 0 && songID != h.state.SongID {
		if time.Now().Before(h.state.SetSongPlayedTime) && elapsed > skipGuardMinElapsed.Seconds() {
			h.state.LastSkippedID = h.state.SongID
			h.pushSticker(h.state.LastSongURI, StickerSkipCountIncrement)
			h.pushSticker(h.state.LastSongURI, StickerLastSkippedStamp)
		}
	}

	h.state.LastSongID = h.state.SongID
	h.state.SongID = songID
	h.state.PlayState = status["state"]
	h.state.LastSongURI = status["file"]
	h.state.LastSongStartTime = time.Now().Add(-time.Duration(elapsed * float64(time.Second)))

	durationSec := statusAttrFloat(status, "duration")
	half := time.Duration(durationSec/2*float64(time.Second))
	if half > scrobbleHalfPlayedCap {
		half = scrobbleHalfPlayedCap
	}
	h.state.SetSongPlayedTime = h.state.LastSongStartTime.Add(half)

	crossfade := statusAttrInt(status, "xfade")
	h.state.CrossfadeSeconds = crossfade
	h.state.SongEndTime = h.state.LastSongStartTime.Add(time.Duration(durationSec) * time.Second)

	h.emitEvent("update_player", nil)
}

// checkPlayedScoring implements spec §4.5 "Played-song scoring": once now
// passes the played-at mark for the current song and it has not yet been
// scored, queue a play-count increment and last-played stamp, and fire
// mympd-scrobble.
func (h *Heart) checkPlayedScoring() {
	if h.state.SongID == 0 || h.state.SongID == h.state.LastLastPlayedID {
		return
	}
	if time.Now().Before(h.state.SetSongPlayedTime) {
		return
	}
	h.pushSticker(h.state.LastSongURI, StickerPlayCountIncrement)
	h.pushSticker(h.state.LastSongURI, StickerLastPlayedStamp)
	if h.LastPlayed != nil {
		if err := h.LastPlayed.Add(h.state.LastSongURI, time.Now()); err != nil {
			log.WithError(err).Warn("last-played append failed")
		}
	}
	h.state.LastLastPlayedID = h.state.SongID
	h.Triggers.Execute(trigger.EventMyMPDScrobble, "default")
}

// checkJukeboxRefill implements spec §4.5 "Jukebox refill trigger":
// add-time = song-end-time - (crossfade + 10s); if now is past it and the
// queue has fallen to or below target, run jukebox selection (left to the
// caller via WantWorker/Events; selection itself is out of this core).
func (h *Heart) checkJukeboxRefill() {
	if !h.JukeboxEnabled || h.state.SongEndTime.IsZero() {
		return
	}
	addTime := h.state.SongEndTime.Add(-time.Duration(h.state.CrossfadeSeconds)*time.Second - jukeboxLeadSeconds)
	if time.Now().Before(addTime) {
		return
	}
	if h.state.QueueLength > h.JukeboxTarget {
		return
	}
	h.emitEvent("update_queue", map[string]any{"reason": "jukebox-refill"})
}

func (h *Heart) pushSticker(uri string, kind StickerKind) {
	if uri == "" {
		return
	}
	h.stickerBacklog = append(h.stickerBacklog, StickerJob{URI: uri, Kind: kind})
}

// drainStickerBacklog flushes queued sticker jobs between idle reentries
// (spec §3 "Sticker job", §4.5 "drains timers and stickers").
func (h *Heart) drainStickerBacklog() {
	if len(h.stickerBacklog) == 0 || h.state.Features.Stickers == false {
		return
	}
	for _, job := range h.stickerBacklog {
		if err := h.applySticker(job); err != nil {
			log.WithError(err).WithField("uri", job.URI).Warn("sticker write failed")
		}
	}
	h.stickerBacklog = h.stickerBacklog[:0]
}

func (h *Heart) applySticker(job StickerJob) error {
	client := h.conn.Client()
	switch job.Kind {
	case StickerPlayCountIncrement:
		return incrementSticker(client, job.URI, "playCount")
	case StickerSkipCountIncrement:
		return incrementSticker(client, job.URI, "skipCount")
	case StickerLastPlayedStamp:
		return client.StickerSet(job.URI, "lastPlayed", unixNowString())
	case StickerLastSkippedStamp:
		return client.StickerSet(job.URI, "lastSkipped", unixNowString())
	}
	return nil
}

// onCacheRebuildTimer fires the one-shot / 10s timer scheduled after
// connect or a database event (spec §4.5 steps 4, "database" bullet); the
// actual rebuild is dispatched as a detached worker per spec §4.6.
func (h *Heart) onCacheRebuildTimer(_ any) {
	if h.WantWorker != nil {
		h.WantWorker("CACHES_CREATE", &Request{MPDIndependent: false})
	}
}

// onSmartplsUpdateTimer fires the 30s smart-playlist-update interval timer
// installed at connect (spec §4.5 step 4).
func (h *Heart) onSmartplsUpdateTimer(_ any) {
	if h.WantWorker != nil {
		h.WantWorker("SMARTPLS_UPDATE_ALL", &Request{MPDIndependent: false})
	}
}

// onCovercachePruneTimer fires the daily covercache eviction sweep (spec
// §4.7 "Cover-cache retention is time-based"). Runs on the idle-loop
// goroutine like every other timer handler, but touches only the cache
// directory, not MPD state.
func (h *Heart) onCovercachePruneTimer(_ any) {
	if h.Covercache == nil {
		return
	}
	removed, err := h.Covercache.Prune(h.CovercacheKeepDays)
	if err != nil {
		log.WithError(err).Warn("covercache prune failed")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Debug("covercache prune removed stale files")
	}
}

// serviceRequest runs a synchronous request's handler and pushes its
// response; a request with a nil Handle is dropped without a response.
func (h *Heart) serviceRequest(req *Request) {
	if req.Handle == nil {
		return
	}
	resp := req.Handle(h)
	resp.ID = req.ID
	h.Responses.Push(&resp, req.ID)
}

// shutdown drains the API queue with "MPD disconnected" errors for
// non-local requests, frees timers and the connection (spec §4.5 "Exit
// conditions").
func (h *Heart) shutdown() {
	h.shuttingDown = true
	for {
		req, ok := h.Requests.Shift(0, 0)
		if !ok {
			break
		}
		h.Responses.Push(&Response{ID: req.ID, Err: errDisconnected}, req.ID)
	}
	h.Timers.RemoveAll()
	h.conn.Close()
	h.conn = nil
}

// Client exposes the live MPD client to synchronous request handlers built
// by internal/api. It is only safe to call from inside a Request.Handle
// closure, which always runs on the idle-loop goroutine (spec §4.1
// "Synchronous handlers call ... the MPD wrapper (C3) directly").
func (h *Heart) Client() *mpd.Client {
	if h.conn == nil {
		return nil
	}
	return h.conn.Client()
}

func (h *Heart) emitEvent(method string, params map[string]any) {
	h.Events.Push(Event{Method: method, Params: params}, 0)
}

func incrementSticker(client interface {
	StickerGet(uri, name string) (*mpd.Sticker, error)
	StickerSet(uri, name, value string) error
}, uri, name string) error {
	n := 0
	if sticker, err := client.StickerGet(uri, name); err == nil && sticker != nil {
		n = parseIntOr(sticker.Value, 0)
	}
	return client.StickerSet(uri, name, itoa(n+1))
}
