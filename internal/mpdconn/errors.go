package mpdconn

import (
	"errors"
	"net"

	"github.com/fhs/gompd/v2/mpd"
)

// Classification is the result of running an MPD error through Recover: it
// tells the heart whether the connection remains usable (spec §7 "Error
// taxonomy").
type Classification int

const (
	// Transient means the command failed but the connection itself is
	// still good (e.g. MPD rejected a malformed argument).
	Transient Classification = iota
	// Lost means the connection must be torn down and reconnected.
	Lost
)

// Recover classifies err and decides whether the connection remains usable.
// It never itself closes the connection; the caller (heart) acts on the
// returned Classification by transitioning conn state (spec §7
// "wrapper functions return a boolean success ... a single recover routine
// which decides whether the connection remains usable").
func Recover(err error) Classification {
	if err == nil {
		return Transient
	}
	var mpdErr mpd.Error
	if errors.As(err, &mpdErr) {
		// The server understood and rejected the command; the connection
		// itself is fine.
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Lost
	}
	if errors.Is(err, net.ErrClosed) {
		return Lost
	}
	// Anything else (protocol desync, EOF, broken pipe) is treated as a
	// lost connection; better to reconnect than to keep using a socket in
	// an unknown state.
	return Lost
}
