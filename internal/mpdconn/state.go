// Package mpdconn wraps the MPD wire-protocol client (gompd) with the
// connect/disconnect/reconnect state machine, feature probing and error
// classification spec §3 and §4.3 describe (components C3).
package mpdconn

import (
	"time"
)

// ConnState is one of the connection states spec §3 lists.
type ConnState int

const (
	Disconnected ConnState = iota
	Wait
	Connected
	Failure
	Disconnect
	DisconnectInstant
	Reconnect
	TooOld
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Wait:
		return "WAIT"
	case Connected:
		return "CONNECTED"
	case Failure:
		return "FAILURE"
	case Disconnect:
		return "DISCONNECT"
	case DisconnectInstant:
		return "DISCONNECT_INSTANT"
	case Reconnect:
		return "RECONNECT"
	case TooOld:
		return "TOO_OLD"
	default:
		return "UNKNOWN"
	}
}

// Features records which optional MPD capabilities the connected server
// exposes, probed once per connect (spec §4.5 step 3).
type Features struct {
	Stickers   bool
	Tags       bool
	Smartpls   bool
	Playlists  bool
	AdvSearch  bool
	Whence     bool
	AlbumArt   bool
	Partitions bool
}

// MinServerVersion is the lowest MPD protocol version the daemon accepts
// (spec §6). Connections to older servers are rejected with TooOld.
var MinServerVersion = [3]int{0, 21, 0}

// State is the mutable MPD connection state owned exclusively by the idle
// loop (spec §3 "MPD state", §5 "no locks are needed"). It is never touched
// from any other goroutine; worker tasks own a private copy instead
// (spec §4.6).
type State struct {
	ConnState ConnState

	// ReconnectInterval grows by 2s per failure, capped at 20s (spec §4.5).
	ReconnectInterval time.Duration
	ReconnectDeadline time.Time

	QueueVersion int
	QueueLength  int
	PlayState    string // "play", "pause", "stop"

	SongID             int
	LastSongID         int
	LastSkippedID      int
	LastSongURI        string
	LastSongStartTime  time.Time
	SongEndTime        time.Time
	SetSongPlayedTime  time.Time
	LastLastPlayedID   int
	CrossfadeSeconds   int

	Features    Features
	EnabledTags []string
}

// IsConnected reports whether the state's invariant "state == CONNECTED iff
// connection handle != nil and last probe succeeded" currently holds, given
// that the connection handle itself lives in Conn (see conn.go).
func (s *State) IsConnected() bool {
	return s.ConnState == Connected
}

// NextReconnectInterval implements the "+2 per failure, cap 20" ladder
// (spec §4.5, §8 "Reconnect backoff"). Deliberately no jitter — see
// SPEC_FULL.md Open Question 1.
func (s *State) NextReconnectInterval() time.Duration {
	if s.ReconnectInterval < 20*time.Second {
		s.ReconnectInterval += 2 * time.Second
	}
	return s.ReconnectInterval
}

// ResetReconnect clears the backoff counters on a successful connect.
func (s *State) ResetReconnect() {
	s.ReconnectInterval = 0
	s.ReconnectDeadline = time.Time{}
}
