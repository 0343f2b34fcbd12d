package api

import (
	"encoding/json"
	"errors"

	"mympdd/internal/heart"
	"mympdd/internal/tags"
)

// errNoMPD is returned when a synchronous handler runs while the idle loop
// holds no live connection (spec §4.5 WAIT/FAILURE states).
var errNoMPD = errors.New("MPD not connected")

// mpdHandler runs on the idle-loop goroutine via heart.Request.Handle (spec
// §4.1 "Synchronous handlers call ... the MPD wrapper (C3) directly").
type mpdHandler func(h *heart.Heart, params json.RawMessage) (any, error)

// mpdHandlers is the subset of myMPD's ~150 JSON-RPC methods this module
// implements synchronously against the live MPD connection (spec §9
// "MPD wire protocol" list: play/pause/stop/next/prev, volume, queue
// listing). Everything else answers "Unknown request" the way
// mpd_worker_api.c's switch default does.
var mpdHandlers = map[string]mpdHandler{
	"MYMPD_API_PLAYER_PLAY":         handlePlayerPlay,
	"MYMPD_API_PLAYER_PAUSE":        handlePlayerPause,
	"MYMPD_API_PLAYER_STOP":         handlePlayerStop,
	"MYMPD_API_PLAYER_NEXT":         handlePlayerNext,
	"MYMPD_API_PLAYER_PREV":         handlePlayerPrev,
	"MYMPD_API_PLAYER_VOLUME_SET":   handleVolumeSet,
	"MYMPD_API_PLAYER_STATE":        handlePlayerState,
	"MYMPD_API_QUEUE_LIST":          handleQueueList,
	"MYMPD_API_QUEUE_CLEAR":         handleQueueClear,
	"MYMPD_API_QUEUE_ADD_URI":       handleQueueAddURI,
	"MYMPD_API_PLAYLIST_LIST":       handlePlaylistList,
	"MYMPD_API_DATABASE_SEARCH_ADV": handleSearchAdv,
}

func handlePlayerPlay(h *heart.Heart, raw json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	var params struct {
		SongPos int `json:"songPos"`
	}
	_ = json.Unmarshal(raw, &params)
	pos := -1
	if params.SongPos != 0 {
		pos = params.SongPos
	}
	if err := client.Play(pos); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlayerPause(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	if err := client.Pause(true); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlayerStop(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	if err := client.Stop(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlayerNext(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	if err := client.Next(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlayerPrev(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	if err := client.Previous(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handleVolumeSet(h *heart.Heart, raw json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	var params struct {
		Volume int `json:"volume"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if err := client.SetVolume(params.Volume); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlayerState(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	status, err := client.Status()
	if err != nil {
		return nil, err
	}
	return status, nil
}

func handleQueueList(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	songs, err := client.PlaylistInfo(-1, -1)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": songs, "totalEntities": len(songs)}, nil
}

func handleQueueClear(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	if err := client.Clear(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handleQueueAddURI(h *heart.Heart, raw json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if err := client.Add(params.URI); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func handlePlaylistList(h *heart.Heart, _ json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	playlists, err := client.ListPlaylists()
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": playlists, "totalEntities": len(playlists)}, nil
}

// handleSearchAdv implements the advanced-search request, exercising the
// sort-tag fallback against a live MPD "search" command (spec §8 scenario
// 3: sort="LastModified", sortdesc=true issues "sort Last-Modified desc").
// Unlike the plain handlers above, the filter+sort clause isn't something
// gompd's typed Search method expresses, so this goes through the raw
// command path the way mpdconn's plchangesposid/binarylimit calls do.
func handleSearchAdv(h *heart.Heart, raw json.RawMessage) (any, error) {
	client := h.Client()
	if client == nil {
		return nil, errNoMPD
	}
	var params struct {
		Expression string `json:"expression"`
		Sort       string `json:"sort"`
		SortDesc   bool   `json:"sortdesc"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if params.Expression == "" {
		params.Expression = `(base "")`
	}

	cmd := "search " + params.Expression
	if params.Sort != "" {
		cmd += " sort " + tags.SortClause(params.Sort, params.SortDesc, h.EnabledTags)
	}

	songs, err := client.Command(cmd).AttrsList("file")
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": songs, "totalEntities": len(songs)}, nil
}
