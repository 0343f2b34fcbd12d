// Command mympdd runs the idle loop (C8), the worker pool (C9), and the
// HTTP/JSON-RPC + WebSocket boundary (C12) as one process, wiring every
// package built under internal/ together. There are no command-line flags;
// configuration comes from internal/config (defaults, an optional
// mympdd.yaml file, and MYMPDD_-prefixed environment variables). Signal handling is
// grounded on famish99-direttampd/cmd/direttampd/main.go's
// os/signal.Notify + syscall.SIGTERM pattern.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"mympdd/internal/api"
	"mympdd/internal/config"
	"mympdd/internal/coverart"
	"mympdd/internal/heart"
	"mympdd/internal/lastplayed"
	"mympdd/internal/session"
	"mympdd/internal/worker"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("mympdd: failed to load configuration")
	}

	if err := os.MkdirAll(cfg.Workdir, 0o755); err != nil {
		log.WithError(err).Fatal("mympdd: failed to create workdir")
	}

	h := heart.New(cfg.MPDNetwork, cfg.MPDAddress, cfg.MPDPassword)
	h.EnabledTags = cfg.EnabledTags
	h.JukeboxEnabled = cfg.JukeboxEnabled
	h.JukeboxTarget = cfg.JukeboxTarget
	h.AutoPlay = cfg.AutoPlay

	lp := lastplayed.New(cfg.Workdir+"/state/last_played", cfg.LastPlayedKeep)
	h.LastPlayed = lp

	pool := worker.New(cfg.MPDNetwork, cfg.MPDAddress, cfg.MPDPassword, h.Albums)
	pool.EnabledTags = cfg.EnabledTags
	pool.SmartplsEnabled = cfg.SmartplsEnabled

	h.WantWorker = func(command string, req *heart.Request) {
		job := worker.Job{Command: worker.Command(command), RequestID: req.ID, ConnID: -1}
		pool.Dispatch(job)
	}

	covercache := coverart.NewCovercache(cfg.CovercacheDir)
	h.Covercache = covercache
	h.CovercacheKeepDays = cfg.CovercacheKeepDays

	cover := coverart.New(cfg.Workdir, cfg.MusicDirectory, covercache, cfg.CoverImageNames, cfg.ThumbnailNames, cfg.CovercacheDir != "")

	srv := api.NewServer(h, pool, session.New(), cover, covercache, h.Albums, lp)
	srv.PIN = cfg.PIN

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go h.Run(ctx)
	go srv.Hub.PumpEvents(h.Events, done)
	go pumpWorkerResults(h, srv.Hub, pool, done)

	httpSrv := &http.Server{Addr: cfg.HTTPListen, Handler: srv.Router()}
	go func() {
		log.WithField("addr", cfg.HTTPListen).Info("mympdd: HTTP listener starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("mympdd: HTTP listener stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("mympdd: shutting down")

	close(done)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("mympdd: HTTP shutdown did not complete cleanly")
	}
	if err := lp.Flush(); err != nil {
		log.WithError(err).Warn("mympdd: last-played flush failed on shutdown")
	}
}

// pumpWorkerResults relays worker results along mpd_worker_api's dual reply
// path: notification-bearing results are broadcast on the WebSocket hub,
// and results for a waiting connection (ConnID >= 0) are pushed onto
// heart's Responses queue, matched by RequestID (spec §4.6).
func pumpWorkerResults(h *heart.Heart, hub *api.Hub, pool *worker.Pool, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		result, ok := pool.Results.Shift(200*time.Millisecond, 0)
		if !ok {
			continue
		}
		if result.Notify != "" {
			hub.Broadcast(heart.Event{Method: result.Notify, Params: map[string]any{
				"facility": result.Facility,
				"severity": result.Severity,
				"message":  result.Message,
			}})
		}
		if result.ConnID >= 0 {
			h.Responses.Push(&heart.Response{ID: result.RequestID, Err: result.Err}, result.RequestID)
		}
	}
}
