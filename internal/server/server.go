package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/recorder"
	"github.com/babelcloud/vidcap/internal/capture/sampler"
	"github.com/babelcloud/vidcap/internal/util"
)

const shutdownTimeout = 2 * time.Second

// sampleFunc runs a frame sampling pass against an already-opened handle.
type sampleFunc func(h *core.Handle, rng core.TimeRange, crop core.CropArea, opts sampler.Options, onProgress sampler.ProgressFunc) ([]core.Frame, error)

// recordFunc runs a clip recording pass against an already-opened handle.
type recordFunc func(h *core.Handle, rng core.TimeRange, crop core.CropArea, opts recorder.Options) (*core.OutputClip, error)

// Server exposes the capture pipeline over HTTP. One instance serves many
// media paths; per-path exclusivity is enforced by the pooled source leases.
type Server struct {
	addr       string
	httpServer *http.Server
	pool       HandleOpener
	jobs       *jobRegistry

	sample sampleFunc
	record recordFunc
}

func New(addr string) *Server {
	s := &Server{
		addr: addr,
		pool: NewSourcePool(),
		jobs: newJobRegistry(),
		sample: func(h *core.Handle, rng core.TimeRange, crop core.CropArea, opts sampler.Options, onProgress sampler.ProgressFunc) ([]core.Frame, error) {
			return sampler.New(opts).Sample(h, rng, crop, onProgress)
		},
		record: func(h *core.Handle, rng core.TimeRange, crop core.CropArea, opts recorder.Options) (*core.OutputClip, error) {
			return recorder.New(opts).Record(h, rng, crop)
		},
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: loggingMiddleware(mux),
	}
	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/capture/frames", s.handleCaptureFrames)
	mux.HandleFunc("POST /api/v1/capture/clip", s.handleCaptureClip)
	mux.HandleFunc("GET /api/v1/jobs/{id}/progress", s.handleJobProgress)
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	util.GetLogger().Info("Capture server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains in-flight requests, then tears down pooled sources and any
// progress watchers still attached.
func (s *Server) Stop() error {
	util.GetLogger().Info("Shutting down capture server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		util.GetLogger().Warn("Graceful shutdown failed, forcing close", "error", err)
		err = s.httpServer.Close()
	}

	s.jobs.closeAll()
	s.pool.Close()
	return err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		util.GetLogger().Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
