// Package status serves liveness, readiness and a JSON status page.
package status

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ticketwatch/internal/eventbus"
	"ticketwatch/internal/monitor"
	"ticketwatch/internal/runtime/supervisor"
	"ticketwatch/internal/storage"
	logx "ticketwatch/pkg/logx"
)

type Config struct {
	Addr  string
	Token string
	Pprof bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Sources are read on every request. Nil funcs are left out of the page.
type Sources struct {
	Monitor    func() monitor.Status
	Deliveries func() []storage.DeliveryRecord
	Events     func() []eventbus.Event
	Routines   func() []supervisor.Stats
	Channels   []string
}

// Page is the /status body.
type Page struct {
	Version    string                   `json:"version,omitempty"`
	Started    time.Time                `json:"started"`
	Uptime     string                   `json:"uptime"`
	Channels   []string                 `json:"channels"`
	Monitor    *monitor.Status          `json:"monitor,omitempty"`
	Deliveries []storage.DeliveryRecord `json:"deliveries,omitempty"`
	Events     []eventbus.Event         `json:"events,omitempty"`
	Routines   []supervisor.Stats       `json:"routines,omitempty"`
}

type Server struct {
	cfg     Config
	src     Sources
	log     logx.Logger
	version string
	started time.Time

	mu sync.Mutex
	ln net.Listener
}

func New(cfg Config, src Sources, version string, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Server{cfg: cfg, src: src, log: log, version: version, started: time.Now()}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", s.ready)

	r.Group(func(r chi.Router) {
		r.Use(bearer(s.cfg.Token))
		r.Get("/status", s.status)
		if s.cfg.Pprof {
			r.Mount("/debug", middleware.Profiler())
		}
	})
	return r
}

func (s *Server) ready(w http.ResponseWriter, _ *http.Request) {
	if s.src.Monitor == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	st := s.src.Monitor()
	if !st.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first cycle"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cycles": st.Cycles})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	p := Page{
		Version:  s.version,
		Started:  s.started,
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Channels: append([]string{}, s.src.Channels...),
	}
	if s.src.Monitor != nil {
		st := s.src.Monitor()
		p.Monitor = &st
	}
	if s.src.Deliveries != nil {
		p.Deliveries = s.src.Deliveries()
	}
	if s.src.Events != nil {
		p.Events = s.src.Events()
	}
	if s.src.Routines != nil {
		p.Routines = s.src.Routines()
	}
	writeJSON(w, http.StatusOK, p)
}

// Serve listens on cfg.Addr until ctx is done. It fits supervisor.GoRestart:
// a clean shutdown returns nil, a listen failure returns the error.
func (s *Server) Serve(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("status listen failed", logx.String("addr", addr), logx.Err(err))
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	defer func() { _ = srv.Close() }()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}()

	s.log.Info("status server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", s.cfg.Token != ""),
		logx.Bool("pprof", s.cfg.Pprof),
	)
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		s.log.Info("status server stopped")
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("status server exited unexpectedly")
	}
	return err
}

// Addr is the bound address once Serve is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func bearer(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenMatches(r.Header.Get("Authorization"), tok) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// tokenMatches compares in constant time.
func tokenMatches(authorization, tok string) bool {
	const p = "Bearer "
	if !strings.HasPrefix(authorization, p) {
		return false
	}
	got := strings.TrimSpace(strings.TrimPrefix(authorization, p))
	return subtle.ConstantTimeCompare([]byte(got), []byte(tok)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
