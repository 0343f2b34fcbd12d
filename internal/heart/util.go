package heart

import (
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// statusAttrInt reads an integer attribute out of an MPD status reply,
// defaulting to 0 on a missing or malformed key (mirrors the original's
// tolerant atoi-on-status-fields style).
func statusAttrInt(status mpd.Attrs, key string) int {
	return parseIntOr(status[key], 0)
}

func statusAttrFloat(status mpd.Attrs, key string) float64 {
	v, err := strconv.ParseFloat(status[key], 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func unixNowString() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
