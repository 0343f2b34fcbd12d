package heart

import (
	"testing"
	"time"

	"mympdd/internal/albumcache"
	"mympdd/internal/queue"
	"mympdd/internal/timer"
	"mympdd/internal/trigger"
)

func newTestHeart() *Heart {
	return &Heart{
		Requests:  queue.New[*Request]("api"),
		Responses: queue.New[*Response]("responses"),
		Events:    queue.New[Event]("events"),
		Timers:    timer.New(),
		Triggers:  trigger.New(),
		Albums:    albumcache.New(),
	}
}

type fakeLastPlayed struct {
	added []string
}

func (f *fakeLastPlayed) Add(uri string, playedAt time.Time) error {
	f.added = append(f.added, uri)
	return nil
}

func TestCheckPlayedScoringFiresOncePastMark(t *testing.T) {
	h := newTestHeart()
	lp := &fakeLastPlayed{}
	h.LastPlayed = lp

	h.state.SongID = 42
	h.state.LastSongURI = "song.mp3"
	h.state.SetSongPlayedTime = time.Now().Add(-time.Second)

	scrobbled := false
	h.Triggers.Register(trigger.EventMyMPDScrobble, "", trigger.HandlerFunc(func(event trigger.Event, partition string) {
		scrobbled = true
	}))

	h.checkPlayedScoring()

	if !scrobbled {
		t.Fatal("expected mympd-scrobble trigger to fire")
	}
	if len(lp.added) != 1 || lp.added[0] != "song.mp3" {
		t.Fatalf("last-played ring got %v", lp.added)
	}
	if len(h.stickerBacklog) != 2 {
		t.Fatalf("expected 2 sticker jobs queued, got %d", len(h.stickerBacklog))
	}

	// Calling again for the same song must not re-score it.
	h.checkPlayedScoring()
	if len(lp.added) != 1 {
		t.Fatalf("expected no re-scoring, got %v", lp.added)
	}
}

func TestCheckPlayedScoringNotYetDue(t *testing.T) {
	h := newTestHeart()
	h.state.SongID = 7
	h.state.LastSongURI = "song.mp3"
	h.state.SetSongPlayedTime = time.Now().Add(time.Minute)

	h.checkPlayedScoring()

	if len(h.stickerBacklog) != 0 {
		t.Fatalf("expected no sticker jobs yet, got %d", len(h.stickerBacklog))
	}
}

func TestCheckJukeboxRefillRespectsTarget(t *testing.T) {
	h := newTestHeart()
	h.JukeboxEnabled = true
	h.JukeboxTarget = 5
	h.state.CrossfadeSeconds = 2
	h.state.SongEndTime = time.Now().Add(-time.Minute) // well past add-time
	h.state.QueueLength = 10                           // above target: no refill

	h.checkJukeboxRefill()
	if ev, ok := h.Events.Shift(0, 0); ok {
		t.Fatalf("expected no refill event, got %v", ev)
	}

	h.state.QueueLength = 1 // at/below target: refill due
	h.checkJukeboxRefill()
	if _, ok := h.Events.Shift(0, 0); !ok {
		t.Fatal("expected a refill event")
	}
}

func TestHandleIdleEventDatabaseSchedulesRebuild(t *testing.T) {
	h := newTestHeart()
	h.handleIdleEvent("database")

	if _, ok := h.Events.Shift(0, 0); !ok {
		t.Fatal("expected update_database event")
	}
	if h.Timers.Len() != 1 {
		t.Fatalf("expected cache-rebuild timer scheduled, Len()=%d", h.Timers.Len())
	}
}

func TestHandleIdleEventExecutesMatchingTrigger(t *testing.T) {
	h := newTestHeart()
	fired := false
	h.Triggers.Register(trigger.EventMixer, "", trigger.HandlerFunc(func(event trigger.Event, partition string) {
		fired = true
	}))

	h.handleIdleEvent("mixer")

	if !fired {
		t.Fatal("expected mixer trigger to fire")
	}
	if _, ok := h.Events.Shift(0, 0); !ok {
		t.Fatal("expected update_volume event")
	}
}

func TestWaitServicesOnlyMPDIndependentRequests(t *testing.T) {
	h := newTestHeart()
	h.state.ReconnectDeadline = time.Now().Add(time.Hour)

	served := false
	h.Requests.Push(&Request{
		ID:             1,
		MPDIndependent: true,
		Handle: func(h *Heart) Response {
			served = true
			return Response{}
		},
	}, 1)

	h.wait(nil)

	if !served {
		t.Fatal("expected MPD-independent request to be serviced during WAIT")
	}
}

type fakeCovercachePruner struct {
	keepDaysSeen int
	removed      int
	err          error
}

func (f *fakeCovercachePruner) Prune(keepDays int) (int, error) {
	f.keepDaysSeen = keepDays
	return f.removed, f.err
}

func TestOnCovercachePruneTimerCallsPrune(t *testing.T) {
	h := newTestHeart()
	pruner := &fakeCovercachePruner{removed: 3}
	h.Covercache = pruner
	h.CovercacheKeepDays = 31

	h.onCovercachePruneTimer(nil)

	if pruner.keepDaysSeen != 31 {
		t.Fatalf("got keepDays %d, want 31", pruner.keepDaysSeen)
	}
}

func TestOnCovercachePruneTimerNilPrunerIsNoop(t *testing.T) {
	h := newTestHeart()
	h.onCovercachePruneTimer(nil) // must not panic without a Covercache
}

func TestPlayNewlyInsertedSkipsWithNoPriorVersion(t *testing.T) {
	h := newTestHeart()
	// previousVersion <= 0 means "nothing to diff against" and must not
	// touch h.conn, which is nil here (no live MPD in this test).
	if h.playNewlyInserted(0) {
		t.Fatal("expected no newly-inserted song to be playable without a prior version")
	}
}

func TestWaitRejectsMPDDependentRequests(t *testing.T) {
	h := newTestHeart()
	h.state.ReconnectDeadline = time.Now().Add(time.Hour)

	h.Requests.Push(&Request{ID: 2, MPDIndependent: false}, 2)

	h.wait(nil)

	resp, ok := h.Responses.Shift(0, 0)
	if !ok {
		t.Fatal("expected a disconnected-error response")
	}
	if resp.Err != errDisconnected {
		t.Fatalf("got err %v, want errDisconnected", resp.Err)
	}
}
