// Package server exposes the export pipeline, camera capture and export
// history over HTTP.
//
// Routes:
//
//	GET  /health
//	POST /api/dataset/export?fix=bool
//	GET  /api/dataset/exports?limit=n
//	POST /upload/camera
//
// Export requests are serialized: the pipeline overwrites its output
// directory by path and does not coordinate concurrent runs itself.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/signbank/internal/capture"
	"github.com/roach88/signbank/internal/catalog"
	"github.com/roach88/signbank/internal/export"
	"github.com/roach88/signbank/internal/logging"
)

// Exporter runs the consolidation pipeline.
type Exporter interface {
	Export(ctx context.Context, fix bool) (*export.Result, error)
}

// Capturer stores camera uploads.
type Capturer interface {
	Capture(ctx context.Context, p capture.Payload) (*capture.Result, error)
}

// History lists recorded export runs.
type History interface {
	Exports(ctx context.Context, limit int) ([]catalog.ExportRecord, error)
}

// Server wraps the HTTP listener and handlers.
type Server struct {
	settings Settings
	exporter Exporter
	capturer Capturer
	history  History
	logger   *slog.Logger
	clock    func() time.Time

	exportMu sync.Mutex

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	serving   *serveLoop
	startTime time.Time
}

// serveLoop tracks one Serve call. err is set before done is closed.
type serveLoop struct {
	done chan struct{}
	err  error
}

// Option customizes server construction.
type Option func(*Server)

// WithCapturer enables POST /upload/camera.
func WithCapturer(c Capturer) Option {
	return func(s *Server) { s.capturer = c }
}

// WithHistory enables GET /api/dataset/exports.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New prepares a server. exporter is required.
func New(settings Settings, exporter Exporter, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		exporter: exporter,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = logging.New("server")
	}
	if s.settings.MaxBodyBytes <= 0 {
		s.settings.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/dataset/export", s.handleExport)
	if s.history != nil {
		mux.HandleFunc("GET /api/dataset/exports", s.handleHistory)
	}
	if s.capturer != nil {
		mux.HandleFunc("POST /upload/camera", s.handleCamera)
	}
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server: already started")
	}
	listener, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.settings.Addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	loop := &serveLoop{done: make(chan struct{})}
	s.serving = loop
	go func() {
		defer close(loop.done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
			loop.err = fmt.Errorf("server: serve: %w", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Wait blocks until the serve loop begun by the last Start exits and
// returns its error. A loop ended by Shutdown yields nil, as does a server
// that was never started.
func (s *Server) Wait() error {
	s.mu.RLock()
	loop := s.serving
	s.mu.RUnlock()
	if loop == nil {
		return nil
	}
	<-loop.done
	return loop.err
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	return "http://" + s.Addr()
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.startTime
	s.mu.RUnlock()

	var uptime int64
	if !started.IsZero() {
		uptime = int64(s.clock().Sub(started).Seconds())
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", UptimeSeconds: uptime})
}

// detail is the error body of the dataset routes.
type detail struct {
	Detail any `json:"detail"`
}

type validationDetail struct {
	Message string `json:"message"`
	Report  any    `json:"report"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fix, err := parseBool(r.URL.Query().Get("fix"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: err.Error()})
		return
	}

	// A client that disconnects must not abandon a run halfway through a fix.
	s.exportMu.Lock()
	res, err := s.exporter.Export(context.WithoutCancel(r.Context()), fix)
	s.exportMu.Unlock()

	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	ee, ok := export.AsError(err)
	switch {
	case !ok:
		s.logger.Error("export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, detail{Detail: err.Error()})
	case ee.Kind == export.KindValidation:
		writeJSON(w, ee.HTTPStatus(), detail{Detail: validationDetail{Message: ee.Message, Report: ee.Report}})
	default:
		writeJSON(w, ee.HTTPStatus(), detail{Detail: ee.Detail()})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusUnprocessableEntity, detail{Detail: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	runs, err := s.history.Exports(r.Context(), limit)
	if err != nil {
		s.logger.Error("list exports failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, detail{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": runs})
}

type cameraResponse struct {
	Success      bool     `json:"success"`
	ID           string   `json:"id,omitempty"`
	Paths        []string `json:"paths,omitempty"`
	TotalSamples int      `json:"total_samples"`
	Message      string   `json:"message"`
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()

	var payload capture.Payload
	if err := json.NewDecoder(reader).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, cameraResponse{Message: "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, cameraResponse{Message: "invalid JSON"})
		return
	}

	res, err := s.capturer.Capture(r.Context(), payload)
	if err != nil {
		if errors.Is(err, capture.ErrInvalidPayload) {
			writeJSON(w, http.StatusBadRequest, cameraResponse{Message: err.Error()})
			return
		}
		s.logger.Error("capture failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, cameraResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cameraResponse{
		Success:      true,
		ID:           res.SessionID,
		Paths:        res.Paths,
		TotalSamples: len(res.Paths),
		Message:      fmt.Sprintf("saved %d augmented samples", len(res.Paths)),
	})
}

// parseBool accepts the spellings query flags commonly use.
// An empty value is false.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "no", "off", "f", "n":
		return false, nil
	case "1", "true", "yes", "on", "t", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q for fix", raw)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
