// Package dashboard serves the upload page and the JSON/CSV endpoints.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"vulndash/internal/config"
	"vulndash/internal/logger"
	"vulndash/internal/pipeline"
	"vulndash/internal/telemetry"
)

//go:embed templates/*.tmpl
var templates embed.FS

const shutdownTimeout = 10 * time.Second

// Server is the HTTP dashboard. It keeps no per-upload state.
type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	log       *logger.Logger
	tmpl      *template.Template
	telemetry *telemetry.Provider
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry serves the counters of provider on GET /metrics.
func WithTelemetry(provider *telemetry.Provider) Option {
	return func(s *Server) {
		s.telemetry = provider
	}
}

// NewServer parses the page template and wires the pipeline.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, log *logger.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = logger.Discard()
	}

	tmpl, err := template.New("index.html.tmpl").Funcs(template.FuncMap{
		"score": formatScore,
	}).ParseFS(templates, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		log:      log,
		tmpl:     tmpl,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleUpload)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.telemetry != nil {
		mux.HandleFunc("GET /metrics", s.handleMetrics)
	}

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("dashboard listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down dashboard")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
