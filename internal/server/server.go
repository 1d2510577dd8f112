// Package server is the keep-alive HTTP server: status, ping, metrics and
// recent pipeline events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
)

const (
	notReady          = "Not ready"
	defaultEventLimit = 50
)

// BotStatus reports the connected bot's tag, "" when not connected.
type BotStatus interface {
	BotTag() string
}

// QueueStatus reports how many notifications wait to be relayed.
type QueueStatus interface {
	Len() int
}

// Config configures the server.
type Config struct {
	Host            string
	Port            int
	Bot             BotStatus     // optional
	Queue           QueueStatus   // optional
	Events          *bus.EventBus // optional; /events is only mounted when set
	Metrics         http.Handler  // optional
	MetricsEndpoint string        // default /metrics
	Logger          *slog.Logger
}

// Server serves the keep-alive endpoints that hosting platforms poll to keep
// the bot process awake.
type Server struct {
	h       *chi.Mux
	srv     *http.Server
	bot     BotStatus
	queue   QueueStatus
	events  *bus.EventBus
	started time.Time
	logger  *slog.Logger
}

type statusResponse struct {
	Status    string  `json:"status"`
	Bot       string  `json:"bot"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
	Queued    *int    `json:"queued,omitempty"`
	Events    *int    `json:"events,omitempty"`
}

// New builds the router. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = "/metrics"
	}
	h := chi.NewMux()
	s := &Server{
		h: h,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		bot:     cfg.Bot,
		queue:   cfg.Queue,
		events:  cfg.Events,
		started: time.Now(),
		logger:  cfg.Logger,
	}
	s.addRoutes(cfg)
	return s
}

func (s *Server) addRoutes(cfg Config) {
	s.h.Use(middleware.RequestID)
	s.h.Use(middleware.Recoverer)

	s.h.Get("/", s.getStatus)
	s.h.Get("/ping", s.getPing)
	if cfg.Metrics != nil {
		s.h.Method(http.MethodGet, cfg.MetricsEndpoint, cfg.Metrics)
	}
	if s.events != nil {
		s.h.Get("/events", s.getEvents)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.h }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Start listens until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("keep-alive server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for open requests until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	tag := ""
	if s.bot != nil {
		tag = s.bot.BotTag()
	}
	if tag == "" {
		tag = notReady
	}
	resp := statusResponse{
		Status:    "online",
		Bot:       tag,
		Uptime:    time.Since(s.started).Seconds(),
		Timestamp: domain.FormatTimestamp(time.Now()),
	}
	if s.queue != nil {
		n := s.queue.Len()
		resp.Queued = &n
	}
	if s.events != nil {
		n := s.events.HistoryLen()
		resp.Events = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

// getEvents serves the newest events, oldest first. ?type= filters by event
// type, ?since= (RFC 3339) drops older events and ?limit= caps the count.
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultEventLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	var since time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		since = t
	}
	eventType := q.Get("type")
	if eventType == "" {
		eventType = "*"
	}

	out := s.events.Replay(eventType, since)
	if out == nil {
		out = []bus.Event{}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
