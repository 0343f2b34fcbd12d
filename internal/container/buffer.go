package container

import (
	"bytes"
	"encoding/json"
)

// Buffer is a small append-only byte buffer builder used to hand-assemble
// JSON fragments (tags.WriteJSON), mirroring the role myMPD's sds buffer plays in
// jsonrpc.c: cheap string concatenation plus a helper to append a properly
// escaped JSON string.
type Buffer struct {
	bytes.Buffer
}

// WriteJSONString appends s to the buffer as a quoted, escaped JSON string.
func (b *Buffer) WriteJSONString(s string) {
	// encoding/json already implements correct JSON string escaping; there
	// is no reason to hand-roll an escaper here.
	data, _ := json.Marshal(s)
	b.Write(data)
}

// WriteJSONStrings appends a JSON array of escaped strings. An empty slice
// renders as ["-"], matching the tag model's "empty tag set" placeholder
// (spec §4.3).
func (b *Buffer) WriteJSONStrings(values []string) {
	if len(values) == 0 {
		values = []string{"-"}
	}
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteJSONString(v)
	}
	b.WriteByte(']')
}
