// Package server provides the HTTP front end: the paginated post list, the
// post detail page and a JSON API over the same views.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/logging"
	"github.com/ppiankov/spacetraveling/internal/metrics"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/store"
	"github.com/ppiankov/spacetraveling/internal/view"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 30 * time.Second
)

// ContentSource is the part of the content API client the server uses.
type ContentSource interface {
	feed.PageFetcher
	GetByType(ctx context.Context, typeName string, pageSize int) (cms.Page, error)
	GetByUID(ctx context.Context, typeName, uid string) (cms.Record, error)
}

// SnapshotSource provides the first page captured at build time.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, docType string) (store.Snapshot, error)
}

// Options configures a Server. Snapshots and Metrics are optional.
type Options struct {
	Content      ContentSource
	Snapshots    SnapshotSource
	Normalizer   *post.Normalizer
	Metrics      *metrics.Collector
	Logger       logging.Logger
	DocumentType string
	PageSize     int
	ViewTTL      time.Duration
	MaxViews     int
	Version      string
}

// Server is the main HTTP server.
type Server struct {
	content    ContentSource
	snapshots  SnapshotSource
	normalizer *post.Normalizer
	metrics    *metrics.Collector
	logger     logging.Logger
	views      *view.Registry
	docType    string
	pageSize   int
	version    string
	router     chi.Router
	templates  *template.Template
}

// New creates a server.
func New(opts Options) (*Server, error) {
	if opts.Content == nil {
		return nil, errors.New("content source is required")
	}
	if opts.Normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.DocumentType == "" || opts.PageSize < 1 {
		return nil, fmt.Errorf("invalid document type %q or page size %d", opts.DocumentType, opts.PageSize)
	}

	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		content:    opts.Content,
		snapshots:  opts.Snapshots,
		normalizer: opts.Normalizer,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		docType:    opts.DocumentType,
		pageSize:   opts.PageSize,
		version:    opts.Version,
		templates:  tmpl,
	}
	if s.metrics == nil {
		s.metrics = metrics.New(opts.Version)
	}
	s.views = view.NewRegistry(func() *feed.Accumulator {
		return feed.New(s.content, s.normalizer)
	}, opts.ViewTTL, opts.MaxViews)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages.
	r.Get("/", s.handleHome)
	r.Get("/views/{viewID}", s.handleView)
	r.Post("/views/{viewID}/more", s.handleLoadMore)
	r.Get("/post/{uid}", s.handlePost)

	// API.
	r.Route("/api", func(r chi.Router) {
		r.Post("/views", s.handleAPICreateView)
		r.Get("/views/{viewID}", s.handleAPIView)
		r.Post("/views/{viewID}/more", s.handleAPILoadMore)
		r.Delete("/views/{viewID}", s.handleAPIDeleteView)
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweepLoop(sweepCtx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logging.Fields{
			"addr":    addr,
			"version": s.version,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.views.Sweep(); removed > 0 {
				s.logger.WithField("removed", removed).Debug("Expired views swept")
			}
			s.metrics.SetViewsActive(s.views.Len())
		}
	}
}

// firstPage returns the page a new view is seeded with: the latest build
// snapshot when there is one, otherwise a live fetch.
func (s *Server) firstPage(ctx context.Context) (post.Page, error) {
	if s.snapshots != nil {
		snap, err := s.snapshots.LatestSnapshot(ctx, s.docType)
		switch {
		case err == nil:
			s.metrics.SetSnapshotBuiltAt(snap.BuiltAt)
			return snap.Page(), nil
		case errors.Is(err, store.ErrNoSnapshot):
			s.logger.Debug("No build snapshot, fetching first page live")
		default:
			s.logger.WithError(err).Warn("Failed to read build snapshot, fetching first page live")
		}
	}

	raw, err := s.content.GetByType(ctx, s.docType, s.pageSize)
	if err != nil {
		return post.Page{}, fmt.Errorf("first page: %w", err)
	}
	page, err := s.normalizer.NormalizePage(raw)
	if err != nil {
		return post.Page{}, fmt.Errorf("first page: %w", err)
	}
	return page, nil
}

func (s *Server) createView(ctx context.Context) (string, *feed.Accumulator, error) {
	first, err := s.firstPage(ctx)
	if err != nil {
		return "", nil, err
	}
	id, acc, err := s.views.Create(first)
	if err != nil {
		return "", nil, err
	}
	s.metrics.SetViewsActive(s.views.Len())
	return id, acc, nil
}
