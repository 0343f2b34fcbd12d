// Package timer implements the replace-by-id timer wheel the idle loop
// drains on every reentry (spec §3 "Timer entry", §4.4, component C6).
package timer

import (
	"sort"
	"time"
)

// Handler is invoked when a timer fires. It must not block: handlers run on
// the idle-loop goroutine (spec §4.4 "Handlers run on the idle-loop thread
// and must not block").
type Handler func(userdata any)

type entry struct {
	id       int
	fireAt   time.Time
	period   time.Duration // 0 = one-shot
	handler  Handler
	userdata any
}

// Wheel holds timer entries keyed by a stable integer id. It is driven by
// explicit Tick calls from the idle loop's polling wake-ups, not OS timers
// (spec §4.4).
type Wheel struct {
	entries map[int]*entry
}

// New returns an empty Wheel.
func New() *Wheel {
	return &Wheel{entries: map[int]*entry{}}
}

// Replace installs or overwrites the entry for id (spec §4.4 "replace").
// period == 0 makes the entry one-shot: Tick removes it once fired.
func (w *Wheel) Replace(id int, timeout time.Duration, period time.Duration, handler Handler, userdata any) {
	w.entries[id] = &entry{
		id:       id,
		fireAt:   time.Now().Add(timeout),
		period:   period,
		handler:  handler,
		userdata: userdata,
	}
}

// Remove clears the entry for id, if any (spec §4.4 "remove(id)").
func (w *Wheel) Remove(id int) {
	delete(w.entries, id)
}

// RemoveAll clears every entry (spec §4.4 "remove-all() for shutdown").
func (w *Wheel) RemoveAll() {
	w.entries = map[int]*entry{}
}

// Len reports how many entries are currently scheduled.
func (w *Wheel) Len() int {
	return len(w.entries)
}

// Tick fires every entry whose deadline is <= now, in ascending id order
// (spec §4.4 "Ordering" / §5 "Within a tick, timers fire in id order").
// One-shot entries are removed; interval entries are rescheduled to
// now + period.
func (w *Wheel) Tick(now time.Time) {
	var due []int
	for id, e := range w.entries {
		if !e.fireAt.After(now) {
			due = append(due, id)
		}
	}
	sort.Ints(due)

	for _, id := range due {
		e, ok := w.entries[id]
		if !ok {
			continue // removed by a prior handler in this same tick
		}
		e.handler(e.userdata)
		if e.period == 0 {
			delete(w.entries, id)
		} else {
			e.fireAt = now.Add(e.period)
		}
	}
}
