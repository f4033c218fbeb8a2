// Package server exposes the pipeline over HTTP: a message endpoint for the
// console/UI collaborator, a health probe, the gateway status surface and the
// Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	replypipe "github.com/replypipe/replypipe"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
	"github.com/replypipe/replypipe/router"
)

// Options configure the HTTP server.
type Options struct {
	Port   int
	Logger logging.Logger
}

// Server wraps the pipeline in an HTTP boundary.
type Server struct {
	opts Options
	pipe *replypipe.ReplyPipe
	http *http.Server
}

// New creates a server for the given pipe.
func New(pipe *replypipe.ReplyPipe, optFns ...func(o *Options)) *Server {
	opts := Options{
		Port:   8080,
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{opts: opts, pipe: pipe}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/messages", s.handleMessage)
	r.Post("/v1/messages/async", s.handleMessageAsync)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.opts.Logger.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleMessage runs one turn synchronously and returns the outbound
// envelope. Throttle rejections map to 429 so callers can back off.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env core.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}
	if env.Content.Text == "" {
		writeError(w, http.StatusBadRequest, "content.text is required")
		return
	}

	out := s.pipe.HandleSync(r.Context(), env)
	writeJSON(w, http.StatusOK, out)
}

// handleMessageAsync enqueues the envelope on the router and returns 202;
// the reply is delivered through the pipe's OnReply handler.
func (s *Server) handleMessageAsync(w http.ResponseWriter, r *http.Request) {
	var env core.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}
	if env.Content.Text == "" {
		writeError(w, http.StatusBadRequest, "content.text is required")
		return
	}

	if err := s.pipe.Handle(r.Context(), env); err != nil {
		writeError(w, statusForSendError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForSendError maps router send failures onto HTTP status codes; used
// by async boundaries built on Handle.
func statusForSendError(err error) int {
	switch {
	case errors.Is(err, router.ErrBackpressure):
		return http.StatusTooManyRequests
	case errors.Is(err, router.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
