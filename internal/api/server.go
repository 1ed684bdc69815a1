package api

import (
	"context"
	"net/http"

	"github.com/aadjones/kent-repertory-etl/internal/config"
	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/aadjones/kent-repertory-etl/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ChapterStore is the read side of the store used by the API.
type ChapterStore interface {
	ListChapters(ctx context.Context) ([]store.Chapter, error)
	LoadDocument(ctx context.Context, id uint) (repertory.CanonicalDocument, error)
	DeleteChapter(ctx context.Context, id uint) error
	Totals(ctx context.Context) (store.Totals, error)
}

// Server is the HTTP API server for kentetl.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        ChapterStore
	metrics      *metrics.Metrics
	log          *zap.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, st ChapterStore, m *metrics.Metrics, log *zap.Logger, cfg config.Config) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		orchestrator: orch,
		store:        st,
		metrics:      m,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/convert", s.handleConvert)

		r.Post("/api/jobs", s.handleCreateJob)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/chapters", s.handleListChapters)
		r.Get("/api/chapters/{chapterID}", s.handleGetChapter)
		r.Delete("/api/chapters/{chapterID}", s.handleDeleteChapter)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
