// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpapi is the JSON-over-HTTP adapter for the pipeline. Handlers
// only translate requests into calls on the store, ingestor, index, and
// orchestrator, and translate results and classified errors back.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/generate"
	"github.com/pdiddy/miranda/internal/index"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

// Indexer is the part of the semantic index the adapter uses.
type Indexer interface {
	Query(ctx context.Context, projectID string, in index.QueryInput) (types.QueryResult, error)
	QueryText(ctx context.Context, text, query string, mode types.QueryMode) (types.QueryResult, error)
	State(ctx context.Context, projectID string) (types.IndexState, error)
	Configured() bool
}

// Generator is the part of the orchestrator the adapter uses.
type Generator interface {
	Brainstorm(ctx context.Context, in generate.BrainstormInput) (types.Brainstorm, error)
	Write(ctx context.Context, in generate.WriteInput) (types.GeneratedContent, error)
	ListBrainstorms(ctx context.Context, projectID string) ([]types.Brainstorm, error)
	GetContent(ctx context.Context, projectID, contentID string) (types.GeneratedContent, error)
	ListContents(ctx context.Context, projectID string) ([]types.GeneratedContent, error)
	Configured() bool
}

// Config wires the adapter to its collaborators.
type Config struct {
	Store     *project.Store
	Ingestor  *ingest.Ingestor
	Index     Indexer
	Generator Generator
	Logger    *logging.Logger

	Version        string
	AllowedOrigins []string
}

type handler struct {
	store    *project.Store
	ingestor *ingest.Ingestor
	index    Indexer
	gen      Generator
	log      *logging.Logger
	version  string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	h := &handler{
		store:    cfg.Store,
		ingestor: cfg.Ingestor,
		index:    cfg.Index,
		gen:      cfg.Generator,
		log:      log.With("component", "httpapi"),
		version:  cfg.Version,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(h.log))
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/", h.root)
	r.GET("/health", h.health)

	projects := r.Group("/projects")
	{
		projects.GET("", h.listProjects)
		projects.GET("/", h.listProjects)
		projects.POST("", h.createProject)
		projects.POST("/", h.createProject)
		projects.GET("/:id", h.getProject)
		projects.PATCH("/:id", h.updateProject)
		projects.DELETE("/:id", h.deleteProject)

		projects.GET("/:id/buckets", h.listBuckets)
		projects.POST("/:id/buckets", h.createBucket)
		projects.GET("/:id/buckets/:bid/documents", h.listDocuments)
		projects.POST("/:id/buckets/:bid/documents", h.uploadToBucket)
		projects.POST("/:id/upload", h.upload)
		projects.GET("/:id/documents", h.listDocuments)

		projects.GET("/:id/tables", h.listTables)
		projects.POST("/:id/tables", h.createTable)
		projects.GET("/:id/tables/:tid", h.getTable)
		projects.POST("/:id/tables/:tid/rows", h.appendRows)

		projects.POST("/:id/query", h.query)
		projects.GET("/:id/index", h.indexState)

		projects.GET("/:id/brainstorms", h.listBrainstorms)
		projects.GET("/:id/contents", h.listContents)
		projects.GET("/:id/contents/:cid", h.getContent)
		projects.GET("/:id/contents/:cid/export", h.exportContent)
	}

	api := r.Group("/api")
	{
		api.POST("/brainstorm", h.brainstorm)
		api.POST("/write", h.write)
		api.POST("/query-text", h.queryText)
	}

	return r
}

func (h *handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Miranda API is running",
		"health":  "/health",
	})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        h.version,
		"llm_configured": h.gen != nil && h.gen.Configured(),
		"index_ready":    h.index != nil && h.index.Configured(),
		"service":        "miranda",
	})
}

// Server runs the router on an http.Server with graceful shutdown.
type Server struct {
	srv *http.Server
	log *logging.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.srv.Addr)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("HTTP server stopped")
	return nil
}
