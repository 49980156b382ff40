// Package server exposes health, version, metrics and debug endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/poller"
	"github.com/rickgao/aggression-monitor/internal/version"
)

// LoopStatusProvider reports the state of running poll loops.
type LoopStatusProvider interface {
	Status() []poller.LoopStatus
}

// Options configures the server.
type Options struct {
	Addr           string
	MetricsPath    string
	Instance       string
	AllowedOrigins []string
}

// Server is the process's HTTP side door.
type Server struct {
	opts    Options
	router  *mux.Router
	srv     *http.Server
	logger  *zap.SugaredLogger
	started time.Time

	mu      sync.RWMutex
	loops   LoopStatusProvider
	metrics http.Handler
	debug   map[string]func() any
}

// New creates a Server. Routes are registered immediately; handlers for
// loops, metrics and debug values can be attached until Start.
func New(opts Options, logger *zap.SugaredLogger) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		logger:  logger,
		started: time.Now(),
		debug:   make(map[string]func() any),
	}
	s.setupRoutes()
	return s
}

// SetLoops attaches the poll loop status provider.
func (s *Server) SetLoops(p LoopStatusProvider) {
	s.mu.Lock()
	s.loops = p
	s.mu.Unlock()
}

// SetMetrics attaches the metrics handler.
func (s *Server) SetMetrics(h http.Handler) {
	s.mu.Lock()
	s.metrics = h
	s.mu.Unlock()
}

// AddDebug exposes fn's JSON-encoded result on /debug/{name}.
func (s *Server) AddDebug(name string, fn func() any) {
	s.mu.Lock()
	s.debug[name] = fn
	s.mu.Unlock()
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	s.router.HandleFunc(s.opts.MetricsPath, s.handleMetrics).Methods(http.MethodGet)

	debug := s.router.PathPrefix("/debug").Subrouter()
	debug.HandleFunc("/loops", s.handleLoops).Methods(http.MethodGet)
	debug.HandleFunc("/loops/{symbol}", s.handleLoop).Methods(http.MethodGet)
	debug.HandleFunc("/{name}", s.handleDebug).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start listens on Addr in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("HTTP server failed", "error", err)
		}
	}()

	s.logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	status := "ok"
	code := http.StatusOK
	failing := []string{}

	if loops != nil {
		statuses := loops.Status()
		for _, ls := range statuses {
			if ls.Cycles > 0 && ls.Last.Failed() {
				failing = append(failing, ls.Symbol)
			}
		}
		switch {
		case len(statuses) > 0 && len(failing) == len(statuses):
			status = "failing"
			code = http.StatusServiceUnavailable
		case len(failing) > 0:
			status = "degraded"
		}
	}

	respondJSON(w, code, map[string]any{
		"status":   status,
		"instance": s.opts.Instance,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"failing":  failing,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_time": version.BuildTime,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.metrics
	s.mu.RUnlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}

func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	views := []loopView{}
	if loops != nil {
		for _, ls := range loops.Status() {
			views = append(views, newLoopView(ls))
		}
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	if loops != nil {
		for _, ls := range loops.Status() {
			if ls.Symbol == symbol {
				respondJSON(w, http.StatusOK, newLoopView(ls))
				return
			}
		}
	}
	respondError(w, http.StatusNotFound, "unknown symbol "+symbol)
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.mu.RLock()
	fn, ok := s.debug[name]
	s.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, "unknown debug value "+name)
		return
	}
	respondJSON(w, http.StatusOK, fn())
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
