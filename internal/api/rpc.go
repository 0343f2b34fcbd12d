// Package api implements the external HTTP/JSON-RPC boundary and WebSocket
// event fan-out (spec §4.1 data flow, §6 "HTTP/JSON-RPC", component C12).
// Grounded on src/api/api.go's router shape and error-writing convention;
// the push transport is gorilla/websocket rather than the teacher's
// antage/eventsource SSE stream. Requests arrive as JSON-RPC POSTs; the
// WebSocket only carries notifications from server to client.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"mympdd/internal/albumcache"
	"mympdd/internal/coverart"
	"mympdd/internal/heart"
	"mympdd/internal/lastplayed"
	"mympdd/internal/session"
	"mympdd/internal/worker"
)

// requestTimeout bounds how long the HTTP layer waits for the idle loop (or
// a worker) to answer a request before giving up (spec §8 "every wait has a
// timeout").
const requestTimeout = 5 * time.Second

// rpcRequest is one inbound JSON-RPC call (spec §6 "Requests are objects
// {jsonrpc:"2.0", id, method, params:{…}}").
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// rpcResponse is either a result or an error reply (spec §6).
type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

// rpcError carries the facility/severity pair spec §6 and §7 describe.
type rpcError struct {
	Facility string `json:"facility"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Data     any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

func errGeneral(message string) *rpcError {
	return &rpcError{Facility: "general", Severity: "error", Message: message}
}

func errNotFound(facility, message string) *rpcError {
	return &rpcError{Facility: facility, Severity: "warn", Message: message}
}

// Server wires the JSON-RPC/cover-art/session HTTP surface to the idle loop,
// the worker pool, and their supporting stores (spec §4.1's "Data flow"
// paragraph).
type Server struct {
	Heart      *heart.Heart
	Worker     *worker.Pool
	Sessions   *session.Store
	Cover      *coverart.Resolver
	CoverCache *coverart.Covercache
	Albums     *albumcache.Cache
	LastPlayed *lastplayed.Ring
	Hub        *Hub

	// PIN is the shared login secret (spec §14 "shared-PIN session
	// scheme"); empty disables login (every request is treated as
	// authenticated).
	PIN string

	nextID int64
}

// NewServer returns a Server ready to mount.
func NewServer(h *heart.Heart, w *worker.Pool, sessions *session.Store, cover *coverart.Resolver, cache *coverart.Covercache, albums *albumcache.Cache, lp *lastplayed.Ring) *Server {
	return &Server{
		Heart:      h,
		Worker:     w,
		Sessions:   sessions,
		Cover:      cover,
		CoverCache: cache,
		Albums:     albums,
		LastPlayed: lp,
		Hub:        NewHub(),
	}
}

// Router builds the full route tree (spec §6 "HTTP/JSON-RPC" and "Cover-art
// HTTP routes"; shape grounded on src/api/api.go's InitRouter).
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/{partition}", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Post("/", s.handleRPC)
	})
	r.Get("/albumart", s.handleAlbumArt(coverart.SizeFull))
	r.Get("/albumart-thumb", s.handleAlbumArt(coverart.SizeThumb))
	r.Get("/albumart/{albumid}", s.handleAlbumArtByID)
	r.Get("/playlistart", s.handlePlaylistArt)
	r.Get("/proxy-covercache", s.handleProxyCovercache)
	r.Get("/ws/{partition}", s.Hub.ServeWS)
	return r
}

// handleRPC decodes one JSON-RPC call, enforces the session check for
// everything but login, and dispatches it (spec §6, §192 "Session
// endpoints").
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 0, errGeneral("invalid JSON-RPC request"))
		return
	}

	if s.PIN != "" && req.Method != "MYMPD_API_SESSION_LOGIN" {
		hash := r.Header.Get("X-myMPD-Session")
		if hash == "" || !s.Sessions.Validate(hash) {
			writeError(w, req.ID, &rpcError{Facility: "session", Severity: "warn", Message: "Invalid session"})
			return
		}
	}

	result, rpcErr := s.dispatch(r.Context(), req)
	if rpcErr != nil {
		writeError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

// dispatch routes one decoded request to its handler. Session calls are
// serviced locally; everything touching MPD state goes through the idle
// loop's request queue so only the idle-loop goroutine ever touches the
// connection (spec §5 "No locks are needed for those structures").
func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, *rpcError) {
	switch req.Method {
	case "MYMPD_API_SESSION_LOGIN":
		return s.handleSessionLogin(req)
	case "MYMPD_API_SESSION_LOGOUT":
		return s.handleSessionLogout(req)
	case "MYMPD_API_SESSION_VALIDATE":
		return map[string]any{}, nil // validated by the middleware above
	case "MYMPD_API_DATABASE_ALBUM_LIST":
		return s.handleAlbumList(req)
	case "MYMPD_API_DATABASE_ALBUM_DETAIL":
		return s.handleAlbumDetail(req)
	case "MYMPD_API_LAST_PLAYED_LIST":
		return s.handleLastPlayedList(req)
	case "MYMPD_API_CACHES_CREATE":
		return s.dispatchWorker(req, worker.CommandCachesCreate, worker.Job{})
	case "MYMPD_API_SMARTPLS_UPDATE_ALL":
		return s.dispatchWorker(req, worker.CommandSmartplsUpdateAll, worker.Job{})
	case "MYMPD_API_SMARTPLS_UPDATE":
		var params struct {
			Playlist string `json:"playlist"`
		}
		_ = json.Unmarshal(req.Params, &params)
		return s.dispatchWorker(req, worker.CommandSmartplsUpdate, worker.Job{Playlist: params.Playlist})
	default:
		return s.dispatchHeart(ctx, req)
	}
}

func (s *Server) handleSessionLogin(req rpcRequest) (any, *rpcError) {
	var params struct {
		PIN string `json:"pin"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.PIN != s.PIN {
		return nil, &rpcError{Facility: "session", Severity: "warn", Message: "Invalid PIN"}
	}
	hash, err := s.Sessions.New()
	if err != nil {
		return nil, errGeneral("could not create session")
	}
	return map[string]any{"session": hash}, nil
}

func (s *Server) handleSessionLogout(req rpcRequest) (any, *rpcError) {
	var params struct {
		Session string `json:"session"`
	}
	_ = json.Unmarshal(req.Params, &params)
	if err := s.Sessions.Remove(params.Session); err != nil {
		return nil, errNotFound("session", "Session not found")
	}
	return map[string]any{}, nil
}

func (s *Server) handleAlbumList(req rpcRequest) (any, *rpcError) {
	albums := make([]*albumcache.Album, 0, s.Albums.Len())
	s.Albums.Walk(func(a *albumcache.Album) bool {
		albums = append(albums, a)
		return true
	})
	return map[string]any{"data": albums, "totalEntities": len(albums)}, nil
}

func (s *Server) handleAlbumDetail(req rpcRequest) (any, *rpcError) {
	var params struct {
		AlbumKey string `json:"albumkey"`
	}
	_ = json.Unmarshal(req.Params, &params)
	album := s.Albums.Lookup(params.AlbumKey)
	if album == nil {
		return nil, errNotFound("database", "Album not found")
	}
	return album, nil
}

func (s *Server) handleLastPlayedList(req rpcRequest) (any, *rpcError) {
	var params struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(req.Params, &params)
	n := params.Count
	if n <= 0 {
		n = 20
	}
	entries, err := s.LastPlayed.Recent(n)
	if err != nil {
		return nil, errGeneral("could not read last-played list")
	}
	return map[string]any{"data": entries, "totalEntities": len(entries)}, nil
}

// dispatchWorker hands one of the three long-running commands directly to
// the worker pool (s.Worker.Dispatch) and replies immediately with an
// acknowledgement, matching mpd_worker_api's "direct reply plus later
// notification" delivery (spec §4.6).
func (s *Server) dispatchWorker(req rpcRequest, command worker.Command, job worker.Job) (any, *rpcError) {
	if s.Worker == nil {
		return nil, errGeneral("worker pool unavailable")
	}
	job.Command = command
	job.RequestID = req.ID
	job.ConnID = -1
	s.Worker.Dispatch(job)
	return map[string]any{"message": string(command) + " started"}, nil
}

// dispatchHeart builds a heart.Request whose Handle runs on the idle-loop
// goroutine and waits on the response queue for its answer (spec §4.1
// "creates a request record and pushes it onto the API queue").
func (s *Server) dispatchHeart(ctx context.Context, req rpcRequest) (any, *rpcError) {
	id := atomic.AddInt64(&s.nextID, 1)
	handle, ok := mpdHandlers[req.Method]
	if !ok {
		return nil, errGeneral("Unknown request: " + req.Method)
	}

	s.Heart.Requests.Push(&heart.Request{
		ID: id,
		Handle: func(h *heart.Heart) heart.Response {
			result, err := handle(h, req.Params)
			return heart.Response{Result: result, Err: err}
		},
	}, id)

	resp, ok := s.Heart.Responses.Shift(requestTimeout, id)
	if !ok {
		return nil, errGeneral("request timed out")
	}
	if resp.Err != nil {
		return nil, &rpcError{Facility: "mpd", Severity: "error", Message: resp.Err.Error()}
	}
	return resp.Result, nil
}

func writeResult(w http.ResponseWriter, id int64, result any) {
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

// writeError writes a JSON-RPC error reply, logging it first (spec §7's
// error taxonomy; format mirrors src/api/api.go's WriteError).
func writeError(w http.ResponseWriter, id int64, rpcErr *rpcError) {
	log.WithFields(log.Fields{"facility": rpcErr.Facility, "severity": rpcErr.Severity}).
		Warn("api: " + rpcErr.Message)
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
