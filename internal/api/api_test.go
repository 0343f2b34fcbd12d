package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"mympdd/internal/albumcache"
	"mympdd/internal/coverart"
	"mympdd/internal/heart"
	"mympdd/internal/lastplayed"
	"mympdd/internal/session"
)

func newTestServer(pin string) *Server {
	return &Server{
		Sessions:   session.New(),
		Albums:     albumcache.New(),
		Cover:      coverart.New("", "", coverart.NewCovercache(""), nil, nil, false),
		CoverCache: coverart.NewCovercache(""),
		LastPlayed: lastplayed.New("", 5),
		Hub:        NewHub(),
		PIN:        pin,
	}
}

func doRPC(s *Server, method string, params any) *rpcResponse {
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: mustMarshal(params)})
	req := httptest.NewRequest("POST", "/api/default", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRPC(rec, req)
	var resp rpcResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	return &resp
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, _ := json.Marshal(v)
	return data
}

func TestSessionLoginRejectsWrongPIN(t *testing.T) {
	s := newTestServer("1234")
	resp := doRPC(s, "MYMPD_API_SESSION_LOGIN", map[string]any{"pin": "0000"})
	if resp.Error == nil {
		t.Fatal("expected an error for a wrong PIN")
	}
	if resp.Error.Facility != "session" {
		t.Fatalf("got facility %q", resp.Error.Facility)
	}
}

func TestSessionLoginThenLogout(t *testing.T) {
	s := newTestServer("1234")
	resp := doRPC(s, "MYMPD_API_SESSION_LOGIN", map[string]any{"pin": "1234"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	hash, _ := result["session"].(string)
	if hash == "" {
		t.Fatal("expected a session hash in the result")
	}
	if !s.Sessions.Validate(hash) {
		t.Fatal("expected the new session to validate")
	}

	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 2, Method: "MYMPD_API_SESSION_LOGOUT", Params: mustMarshal(map[string]any{"session": hash})})
	req := httptest.NewRequest("POST", "/api/default", bytes.NewReader(body))
	req.Header.Set("X-myMPD-Session", hash)
	rec := httptest.NewRecorder()
	s.handleRPC(rec, req)
	var logout rpcResponse
	json.Unmarshal(rec.Body.Bytes(), &logout)
	if logout.Error != nil {
		t.Fatalf("unexpected logout error: %+v", logout.Error)
	}
	if s.Sessions.Validate(hash) {
		t.Fatal("expected the session to be gone after logout")
	}
}

func TestHandleRPCRejectsMissingSessionWhenPINSet(t *testing.T) {
	s := newTestServer("1234")
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "MYMPD_API_DATABASE_ALBUM_LIST"})
	req := httptest.NewRequest("POST", "/api/default", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRPC(rec, req)

	var resp rpcResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Facility != "session" {
		t.Fatalf("expected a session error, got %+v", resp.Error)
	}
}

func TestHandleRPCUnknownMethod(t *testing.T) {
	s := newTestServer("")
	resp := doRPC(s, "MYMPD_API_DOES_NOT_EXIST", nil)
	if resp.Error == nil {
		t.Fatal("expected an error for an unknown method")
	}
}

func TestAlbumListAndDetail(t *testing.T) {
	s := newTestServer("")
	list := doRPC(s, "MYMPD_API_DATABASE_ALBUM_LIST", nil)
	if list.Error != nil {
		t.Fatalf("unexpected error: %+v", list.Error)
	}

	detail := doRPC(s, "MYMPD_API_DATABASE_ALBUM_DETAIL", map[string]any{"albumkey": "missing"})
	if detail.Error == nil || detail.Error.Severity != "warn" {
		t.Fatalf("expected a warn-severity not-found error, got %+v", detail.Error)
	}
}

func TestLastPlayedListEmpty(t *testing.T) {
	s := newTestServer("")
	resp := doRPC(s, "MYMPD_API_LAST_PLAYED_LIST", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestHubBroadcastToNoClientsIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(heart.Event{Method: "mpd_connected"})
}
