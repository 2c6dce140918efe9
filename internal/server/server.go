// Package server is the analysis service behind the dashboard: it accepts
// review CSV uploads, returns the analysis payload and answers chat questions
// about the last upload of each session.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/api"
	"github.com/kapu/review-dashboard/internal/service/session"
)

// SessionCookie carries the session whose upload chat answers from.
const SessionCookie = "review_session"

// Answerer answers a question about review text.
type Answerer interface {
	Answer(ctx context.Context, reviewsText, question string) (string, error)
}

type Config struct {
	ListenAddr     string
	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
	SessionTTL     time.Duration
}

type Server struct {
	cfg       Config
	analyzer  *analysis.Analyzer
	sessions  session.Store
	assistant Answerer
	logger    *zap.Logger

	registry   *prometheus.Registry
	metrics    *metrics
	engine     *gin.Engine
	httpServer *http.Server
	now        func() time.Time
}

func New(cfg Config, analyzer *analysis.Analyzer, sessions session.Store, assistant Answerer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		cfg:       cfg,
		analyzer:  analyzer,
		sessions:  sessions,
		assistant: assistant,
		logger:    logger,
		registry:  registry,
		metrics:   newMetrics(registry),
		now:       time.Now,
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes
	r.Use(gin.Recovery(), s.requestLogger(), s.metrics.middleware(), s.cors())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	r.POST(api.UploadPath, s.handleUpload)
	r.POST(api.ChatPath, s.handleChat)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Analyzer listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("analyzer server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !slices.Contains(s.cfg.AllowedOrigins, origin) {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if reporter, ok := s.assistant.(interface{ Status() map[string]string }); ok {
		resp["providers"] = reporter.Status()
	}
	c.JSON(http.StatusOK, resp)
}
