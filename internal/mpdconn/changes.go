package mpdconn

// QueueChangeEntry is one row of MPD's `plchangesposid` reply: the queue
// position and song id of an entry that changed since a given playlist
// version (grounded on mympd_api_queue_play_newly_inserted's diff-by-version
// use of `queue changes-brief` in
// original_source/src/mympd_api/mympd_api_queue.c).
type QueueChangeEntry struct {
	Pos int
	ID  int
}

// QueueChangesSince returns the queue entries that changed since version,
// ordered by position, via MPD's `plchangesposid`. gompd/v2 does not wrap
// this command directly, so it is issued through the raw Command/AttrsList
// path the way SetBinaryLimit already does for `binarylimit`.
func (c *Conn) QueueChangesSince(version int) ([]QueueChangeEntry, error) {
	rows, err := c.cmd.Command("plchangesposid %d", version).AttrsList("cpos")
	if err != nil {
		return nil, err
	}
	entries := make([]QueueChangeEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, QueueChangeEntry{
			Pos: atoiAttr(row, "cpos"),
			ID:  atoiAttr(row, "Id"),
		})
	}
	return entries, nil
}

func atoiAttr(row map[string]string, key string) int {
	n := 0
	for _, r := range row[key] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
