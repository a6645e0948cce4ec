package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/ops"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/opsguard/opsguard/internal/webui"
	"github.com/rs/zerolog"
)

// Server provides HTTP API endpoints, the event stream and the web UI
type Server struct {
	core      *ops.Core
	logger    zerolog.Logger
	addr      string
	logBuffer *webui.LogBuffer
	startTime time.Time

	version   string
	commit    string
	buildDate string
	versionMu sync.RWMutex

	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(core *ops.Core, logger zerolog.Logger, addr string) *Server {
	return &Server{
		core:      core,
		logger:    logger.With().Str("component", "api").Logger(),
		addr:      addr,
		startTime: time.Now(),
	}
}

// SetLogBuffer sets the log buffer for the web UI
func (s *Server) SetLogBuffer(lb *webui.LogBuffer) {
	s.logBuffer = lb
}

// SetVersion sets the version information
func (s *Server) SetVersion(version, commit, buildDate string) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.version = version
	s.commit = commit
	s.buildDate = buildDate
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)

	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/alerts", s.handleCreateAlert)
	mux.HandleFunc("GET /api/alerts/stats", s.handleAlertStats)
	mux.HandleFunc("GET /api/alerts/{id}", s.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", s.handleResolveAlert)
	mux.HandleFunc("POST /api/alerts/{id}/escalate", s.handleEscalateAlert)

	mux.HandleFunc("GET /api/protocols", s.handleListProtocols)
	mux.HandleFunc("GET /api/protocols/{id}", s.handleGetProtocol)
	mux.HandleFunc("POST /api/protocols/{id}/activate", s.handleActivateProtocol)
	mux.HandleFunc("POST /api/protocols/{id}/deactivate", s.handleDeactivateProtocol)
	mux.HandleFunc("POST /api/protocols/{id}/drill", s.handleStartDrill)
	mux.HandleFunc("POST /api/protocols/{id}/steps/{stepID}/complete", s.handleCompleteStep)

	mux.HandleFunc("GET /api/modules", s.handleListModules)
	mux.HandleFunc("POST /api/modules", s.handleRegisterModule)
	mux.HandleFunc("POST /api/modules/{id}/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /api/modules/{id}/disconnect", s.handleDisconnectModule)
	mux.HandleFunc("POST /api/modules/{id}/quality", s.handleReportQuality)

	mux.HandleFunc("GET /api/logs", s.handleLogsAPI)
	mux.HandleFunc("DELETE /api/logs", s.handleClearLogs)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", s.core.Metrics().Handler())

	mux.HandleFunc("GET /{$}", s.handleWebUI)

	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("address", s.addr).
			Msg("Starting API server with Web UI")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info().Msg("API server stopped")
	return nil
}

// handleHealth returns service liveness and the overall health label
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.core.HealthSnapshot()

	s.versionMu.RLock()
	version := s.version
	commit := s.commit
	buildDate := s.buildDate
	s.versionMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"system":        snap.Status,
		"score":         snap.Score,
		"active_alerts": snap.Alerts.Active,
		"time":          time.Now().UTC().Format(time.RFC3339),
		"uptime":        time.Since(s.startTime).Round(time.Second).String(),
		"version":       version,
		"commit":        commit,
		"build_date":    buildDate,
	})
}

// handleSnapshot returns the full health snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.HealthSnapshot())
}

// handleLogsAPI returns recent log entries as JSON
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 200)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := []webui.LogEntry{}
	buffered := 0
	if s.logBuffer != nil {
		entries = s.logBuffer.GetRecentEntries(limit, r.URL.Query().Get("level"))
		buffered = s.logBuffer.Len()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":  entries,
		"count":    len(entries),
		"buffered": buffered,
	})
}

// handleClearLogs empties the log buffer
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer != nil {
		s.logBuffer.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"buffered": 0})
}

// PageData holds all data for the web UI template
type PageData struct {
	Version   string
	Commit    string
	Uptime    string
	Snapshot  any
	Protocols []*types.EmergencyProtocol
	Alerts    []*types.Alert
	Logs      []webui.LogEntry
}

// handleWebUI renders the dashboard
func (s *Server) handleWebUI(w http.ResponseWriter, r *http.Request) {
	s.versionMu.RLock()
	data := PageData{
		Version: s.version,
		Commit:  s.commit,
	}
	s.versionMu.RUnlock()

	data.Uptime = webui.FormatDuration(time.Since(s.startTime))
	data.Snapshot = s.core.HealthSnapshot()
	data.Protocols = s.core.ListProtocols()
	data.Alerts = s.core.ListAlerts(alerter.Filter{
		Statuses: []types.AlertStatus{types.StatusActive, types.StatusAcknowledged},
		Limit:    50,
	})
	if s.logBuffer != nil {
		data.Logs = s.logBuffer.GetRecentEntries(100, "")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webui.Templates.ExecuteTemplate(w, "dashboard", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render template")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain error kinds onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidTransition):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
