// Package api serves collage sessions over HTTP.
//
// A session owns one slot store. Clients upload files into it, reorder and
// clear slots, pick a layout and request an export; the export answers
// with a share link or a download link. Routes:
//
//	POST   /api/v1/sessions
//	GET    /api/v1/sessions/{id}
//	DELETE /api/v1/sessions/{id}
//	POST   /api/v1/sessions/{id}/slots               multipart "files", batch
//	PUT    /api/v1/sessions/{id}/slots/{index}       multipart "file"
//	DELETE /api/v1/sessions/{id}/slots/{index}
//	GET    /api/v1/sessions/{id}/slots/{index}/source
//	POST   /api/v1/sessions/{id}/move                {"from":0,"to":2}
//	POST   /api/v1/sessions/{id}/reset
//	PUT    /api/v1/sessions/{id}/layout              {"layout":"asymmetric"}
//	GET    /api/v1/sessions/{id}/geometry?width=640
//	POST   /api/v1/sessions/{id}/export              {"format":"jpeg","share":true}
//	GET    /downloads/{id}
//	GET    /shares/{id}
//	GET    /healthz
//
// Uploads return 202 and load in the background; add ?wait=true to block
// until every file reached a terminal state.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/collage/pkg/cache"
	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/export"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/session"
	"github.com/matzehuels/collage/pkg/share"
)

// maxMemory is the multipart memory limit before parts spill to disk.
const maxMemory = 32 << 20

// Options configures a Server.
type Options struct {
	Config   config.Config
	Runner   *pipeline.Runner
	Sessions session.Store
	Shares   *share.Store
	Logger   *log.Logger
}

// Server is the HTTP surface.
type Server struct {
	cfg      config.Config
	runner   *pipeline.Runner
	sessions session.Store
	shares   *share.Store
	logger   *log.Logger

	// Staged downloads expire after downloadTTL even if never released.
	downloadTTL time.Duration

	// ctx bounds background loads; it ends when Run returns.
	ctx context.Context
}

// New creates a server and installs its delivery chain on the runner.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{
		cfg:      opts.Config,
		runner:   opts.Runner,
		sessions: opts.Sessions,
		shares:   opts.Shares,
		logger:   opts.Logger,
		ctx:      context.Background(),
	}
	s.downloadTTL = 2 * opts.Config.Server.CleanupDelay
	if s.downloadTTL <= 0 {
		s.downloadTTL = cache.TTLShare
	}
	s.runner.Strategies = s.strategies
	return s
}

// strategies offers share only when the client asked for it; download is
// always available.
func (s *Server) strategies(opts pipeline.Options) []export.Strategy {
	var out []export.Strategy
	if opts.Share {
		out = append(out, &export.ShareStrategy{Sharer: s.shares})
	}
	return append(out, &export.DownloadStrategy{
		Target:       s.shares.Downloads(s.downloadTTL),
		CleanupDelay: s.cfg.Server.CleanupDelay,
		Profile:      opts.Profile,
		Logger:       s.logger,
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/downloads/{id}", s.handleDownload)
	r.Get("/shares/{id}", s.handleShare)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/slots", s.handleUpload)
			r.Put("/slots/{index}", s.handleUploadAt)
			r.Delete("/slots/{index}", s.handleClearSlot)
			r.Get("/slots/{index}/source", s.handleSource)
			r.Post("/move", s.handleMove)
			r.Post("/reset", s.handleReset)
			r.Put("/layout", s.handleLayout)
			r.Get("/geometry", s.handleGeometry)
			r.Post("/export", s.handleExport)
		})
	})
	return r
}

// Run serves on cfg.Server.Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	if ms, ok := s.sessions.(*session.MemoryStore); ok {
		go ms.RunJanitor(ctx, time.Minute)
	}

	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening", "address", listener.Addr().String())

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
