package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"dietcal/internal/adherence"
	"dietcal/internal/auth"
	"dietcal/internal/config"
	"dietcal/internal/dashboard"
	"dietcal/internal/ics"
	appLog "dietcal/internal/log"
	"dietcal/internal/model"
	"dietcal/internal/source"
)

// Loader produces a fresh snapshot of both source documents.
type Loader interface {
	Load(ctx context.Context) source.Snapshot
}

// Server serves the dashboard page and its JSON, ICS and websocket APIs.
type Server struct {
	cfg    *config.Config
	loader Loader
	loc    *time.Location
	mux    *http.ServeMux
	hub    *Hub

	// Last loaded snapshot, reused for cfg.CacheTTL() so that every
	// request does not reload both sources.
	snapMu    sync.RWMutex
	snapCache *snapshotCache

	now func() time.Time
}

type snapshotCache struct {
	snap      source.Snapshot
	updatedAt time.Time
}

// loadTimeout bounds a source load started by an API request.
const loadTimeout = 30 * time.Second

//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, loader Loader, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:    cfg,
		loader: loader,
		loc:    loc,
		mux:    http.NewServeMux(),
		hub:    NewHub(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler, with request logging and, when
// configured, Basic Auth on everything but /health.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.cfg.BasicAuth.Username)
		h = auth.BasicAuth(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.PasswordHash, "dietcal", h, "/health")
	}
	return requestLogger(h)
}

// LocalHandler is Handler without Basic Auth, for the loopback listener
// the snapshot capture drives.
func (s *Server) LocalHandler() http.Handler {
	return requestLogger(s.mux)
}

// Hub exposes the live-update hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or hash counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/weight", s.handleWeight)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /ws", s.handleWS)

	// Everything else falls through to the embedded page.
	s.mux.Handle("GET /", s.staticFileServer())
}

// Refresh loads both sources, replaces the cached snapshot and pushes the
// new dashboard to live clients.
func (s *Server) Refresh(ctx context.Context) source.Snapshot {
	snap := s.loader.Load(ctx)
	s.storeSnapshot(snap)

	if s.hub.Len() > 0 {
		if msg, err := s.updateMessage("update", snap); err == nil {
			s.hub.Broadcast(msg)
		} else {
			appLog.Error("live: cannot encode update", err)
		}
	}
	return snap
}

// snapshot returns the cached snapshot while fresh, else loads anew.
func (s *Server) snapshot(ctx context.Context) source.Snapshot {
	s.snapMu.RLock()
	sc := s.snapCache
	s.snapMu.RUnlock()
	if sc != nil && s.now().Sub(sc.updatedAt) < s.cfg.CacheTTL() {
		return sc.snap
	}

	// The load outlives the request that triggered it: the result is shared
	// with every other client until the TTL expires.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	snap := s.loader.Load(loadCtx)
	s.storeSnapshot(snap)
	return snap
}

// storeSnapshot caches snap unless a half of it failed only because its
// load was canceled.
func (s *Server) storeSnapshot(snap source.Snapshot) {
	if errors.Is(snap.EventsErr, context.Canceled) || errors.Is(snap.PersonErr, context.Canceled) {
		appLog.Debug("snapshot load canceled, not cached")
		return
	}
	s.snapMu.Lock()
	s.snapCache = &snapshotCache{snap: snap, updatedAt: s.now()}
	s.snapMu.Unlock()
}

func (s *Server) dashboardOptions(month time.Time) dashboard.Options {
	return dashboard.Options{
		Month:     month,
		Location:  s.loc,
		WeekStart: s.cfg.FirstWeekday(),
		Now:       s.now(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleDashboard returns the full dashboard view.
//
// GET /api/dashboard?month=2024-10
//   - month: optional; restricts the percentages to that month and lays
//     out its grid. Without it the month of the first event is used.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	month, err := dashboard.ParseMonth(r.URL.Query().Get("month"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.snapshot(r.Context())
	view, err := dashboard.Build(snap, s.dashboardOptions(month))
	if err != nil {
		appLog.Error("api dashboard: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type eventsResponse struct {
	Events []dashboard.EventView `json:"events"`
	Error  string                `json:"error,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	resp := eventsResponse{Events: dashboard.EventViews(snap.Events)}
	if snap.EventsErr != nil {
		resp.Error = snap.EventsErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type weightResponse struct {
	PersonalData  model.PersonalData  `json:"personal_data"`
	WeightHistory []model.WeightEntry `json:"weight_history"`
	Chart         [][]any             `json:"chart"`
	Error         string              `json:"error,omitempty"`
}

func (s *Server) handleWeight(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	resp := weightResponse{
		PersonalData:  snap.Person.PersonalData,
		WeightHistory: snap.Person.WeightHistory,
		Chart:         dashboard.ChartRows(snap.Person.WeightHistory),
	}
	if snap.PersonErr != nil {
		resp.Error = snap.PersonErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleICS serves the adherence of every loaded day as a subscribable
// iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	days := adherence.SortedStatuses(adherence.DayStatuses(snap.Events))

	body := ics.ExportAdherence(days, ics.ExportOptions{
		Name:     "Adherence",
		Timezone: s.loc.String(),
		Now:      s.now(),
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="adherence.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// staticFileServer serves the embedded dashboard page from
// internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown /api/* paths must 404 rather than return HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
