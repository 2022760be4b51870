package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
)

// Options configures the HTTP API.
type Options struct {
	Format      string
	Language    string
	RecentLimit int
	DailyCodes  []string
}

// Server exposes the fetcher over HTTP.
type Server struct {
	fetcher     collector.Fetcher
	format      string
	language    string
	recentLimit int
	dailyCodes  []string

	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router. Call Start to listen on addr.
func NewServer(addr string, f collector.Fetcher, opts Options) *Server {
	if opts.Format == "" {
		opts.Format = collector.DefaultFormat
	}
	if opts.Language == "" {
		opts.Language = collector.DefaultLanguage
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 30
	}
	if len(opts.DailyCodes) == 0 {
		for _, ind := range model.DailyIndicators {
			opts.DailyCodes = append(opts.DailyCodes, ind.Code)
		}
	}

	s := &Server{
		fetcher:     f,
		format:      opts.Format,
		language:    opts.Language,
		recentLimit: opts.RecentLimit,
		dailyCodes:  opts.DailyCodes,
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// a fully exhausted fetch takes several attempt timeouts
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(), cors(), compress())

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	{
		api.GET("/bcrp", s.handleSeries)
		api.GET("/bcrp/multiple", s.handleMultiple)
		api.GET("/bcrp/recientes", s.handleRecent)
		api.GET("/indicadores", s.handleCatalog)
	}
	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[INFO] HTTP API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("[INFO] shutting down HTTP API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
