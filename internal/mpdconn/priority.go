package mpdconn

// MaxQueuePriority is MPD's ceiling on the `prio`/`prioid` commands'
// priority argument (grounded on mympd_api_queue_prio_set*'s
// MPD_QUEUE_PRIO_MAX clamp in original_source/src/mympd_api/mympd_api_queue.c).
const MaxQueuePriority = 255

// SetPriority clamps priority to [0, MaxQueuePriority] and applies it to the
// queue range [start, end) via MPD's `prio` command (supplements spec.md
// with mympd_api_queue_prio_set's range form).
func (c *Conn) SetPriority(priority, start, end int) error {
	return c.cmd.SetPriority(clampPriority(priority), start, end)
}

// SetPriorityID is SetPriority's by-song-id counterpart
// (mympd_api_queue_prio_set_highest uses MaxQueuePriority to force a song
// to the front of jukebox selection).
func (c *Conn) SetPriorityID(priority, id int) error {
	return c.cmd.SetPriorityID(clampPriority(priority), id)
}

func clampPriority(priority int) int {
	if priority < 0 {
		return 0
	}
	if priority > MaxQueuePriority {
		return MaxQueuePriority
	}
	return priority
}
