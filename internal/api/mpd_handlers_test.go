package api

import (
	"encoding/json"
	"testing"

	"mympdd/internal/heart"
)

func TestHandleSearchAdvWithoutMPDConnection(t *testing.T) {
	h := &heart.Heart{}
	params, _ := json.Marshal(map[string]any{
		"expression": `((Artist == "Radiohead"))`,
		"sort":       "LastModified",
		"sortdesc":   true,
	})

	_, err := handleSearchAdv(h, params)
	if err != errNoMPD {
		t.Fatalf("got err %v, want errNoMPD", err)
	}
}
