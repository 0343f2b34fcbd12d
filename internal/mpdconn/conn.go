package mpdconn

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"
)

// Conn bundles the two connections a live session needs: cmd for issuing
// commands, and watch for push notifications. This mirrors
// brandsjek-trollibox/src/player/mpd/mpd.go's split between its reusable
// client pool and its dedicated watcher connection, generalized to a single
// command connection since the idle loop is single-threaded (spec §5).
type Conn struct {
	Network, Address, Password string

	cmd   *mpd.Client
	watch *mpd.Watcher
}

// ErrTooOld is returned by Connect when the server's protocol version is
// below MinServerVersion (spec §4.5 step 2, §6).
type ErrTooOld struct {
	Version string
}

func (e *ErrTooOld) Error() string {
	return fmt.Sprintf("MPD server version %s is too old, need >= %d.%d.%d", e.Version, MinServerVersion[0], MinServerVersion[1], MinServerVersion[2])
}

// Connect dials both the command and watch connections and verifies the
// server's protocol version. On any failure both connections are closed and
// nil,err is returned; the caller (heart) classifies the error and drives
// the WAIT/backoff transition (spec §4.5 step 1).
func Connect(network, address, password string) (*Conn, error) {
	cmdClient, err := mpd.DialAuthenticated(network, address, password)
	if err != nil {
		return nil, fmt.Errorf("connect to MPD: %w", err)
	}

	if !versionAtLeast(cmdClient.Version(), MinServerVersion) {
		version := cmdClient.Version()
		cmdClient.Close()
		return nil, &ErrTooOld{Version: version}
	}

	watcher, err := mpd.NewWatcher(network, address, password)
	if err != nil {
		cmdClient.Close()
		return nil, fmt.Errorf("connect MPD watcher: %w", err)
	}

	return &Conn{
		Network:  network,
		Address:  address,
		Password: password,
		cmd:      cmdClient,
		watch:    watcher,
	}, nil
}

// Close releases both connections. Safe to call on a nil Conn.
func (c *Conn) Close() {
	if c == nil {
		return
	}
	if c.watch != nil {
		c.watch.Close()
	}
	if c.cmd != nil {
		c.cmd.Close()
	}
}

// Events returns the channel of idle event class names pushed by MPD (e.g.
// "database", "player", "mixer"); spec §4.5's "Idle-event handling" switches
// on exactly these names.
func (c *Conn) Events() <-chan string {
	return c.watch.Event
}

// WatcherErrors returns the channel the watcher reports connection loss on.
func (c *Conn) WatcherErrors() <-chan error {
	return c.watch.Error
}

// Client exposes the underlying command connection for callers (tag
// negotiation, album cache build, cover-art lookups) that need direct gompd
// access. Never call Idle/NoIdle on it — that's the watcher's job.
func (c *Conn) Client() *mpd.Client {
	return c.cmd
}

// Ping verifies the command connection is still alive.
func (c *Conn) Ping() error {
	return c.cmd.Ping()
}

func versionAtLeast(version string, min [3]int) bool {
	parts := strings.SplitN(version, ".", 3)
	got := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return false
		}
		got[i] = n
	}
	for i := 0; i < 3; i++ {
		if got[i] != min[i] {
			return got[i] > min[i]
		}
	}
	return true
}

// ProbeFeatures issues a handful of lightweight commands to discover which
// optional capabilities the connected server has (spec §4.5 step 3).
// Errors are tolerated: a feature whose probe command fails is just left
// disabled.
func ProbeFeatures(c *Conn) Features {
	var f Features

	if _, err := c.cmd.StickerList("dummy"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		f.Stickers = true
	}
	if tags, err := c.cmd.TagTypes(); err == nil && len(tags) > 0 {
		f.Tags = true
	}
	if _, err := c.cmd.ListPlaylists(); err == nil {
		f.Playlists = true
		f.Smartpls = true
	}
	if _, err := c.cmd.ListPartitions(); err == nil {
		f.Partitions = true
	}
	f.AdvSearch = versionAtLeast(c.cmd.Version(), [3]int{0, 21, 0})
	f.Whence = versionAtLeast(c.cmd.Version(), [3]int{0, 23, 5})
	f.AlbumArt = versionAtLeast(c.cmd.Version(), [3]int{0, 21, 0})

	return f
}

// SetBinaryLimit raises MPD's binary chunk size for albumart transfers
// (spec §4.5 step 4). Unsupported on older servers; errors are logged and
// ignored since the transfer simply falls back to MPD's small default.
func SetBinaryLimit(c *Conn, bytes int) {
	if err := c.cmd.Command("binarylimit %d", bytes).OK(); err != nil {
		log.WithError(err).Debug("binarylimit not supported by this MPD version")
	}
}

// ReconnectWait computes how long to sleep before the next connect attempt
// given the current backoff state, honoring DisconnectInstant's "skip the
// wait phase" rule (spec §4.5 "Reconnect backoff").
func ReconnectWait(state *State) time.Duration {
	if state.ConnState == DisconnectInstant {
		return 0
	}
	return state.NextReconnectInterval()
}
