package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/types"
)

type createAlertRequest struct {
	Kind     types.AlertKind `json:"kind"`
	Severity types.Severity  `json:"severity"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Source   string          `json:"source"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type actorRequest struct {
	By   string `json:"by"`
	Note string `json:"note,omitempty"`
}

type registerModuleRequest struct {
	ModuleID string `json:"module_id"`
	Version  string `json:"version"`
}

type qualityRequest struct {
	Quality types.DataQuality `json:"quality"`
}

type alertResponse struct {
	Alert   *types.Alert `json:"alert"`
	Changed bool         `json:"changed"`
}

type protocolResponse struct {
	Protocol *types.EmergencyProtocol `json:"protocol"`
	Changed  bool                     `json:"changed"`
}

// ---- Alerts ----

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	alerts := s.core.ListAlerts(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	alert, err := s.core.CreateAlert(alerter.NewAlert{
		Kind:     req.Kind,
		Severity: req.Severity,
		Title:    req.Title,
		Message:  req.Message,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.AlertStats())
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.core.GetAlert(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	alert, changed, err := s.core.AcknowledgeAlert(r.PathValue("id"), req.By)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertResponse{Alert: alert, Changed: changed})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	alert, changed, err := s.core.ResolveAlert(r.PathValue("id"), req.By, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertResponse{Alert: alert, Changed: changed})
}

func (s *Server) handleEscalateAlert(w http.ResponseWriter, r *http.Request) {
	alert, changed, err := s.core.EscalateAlert(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertResponse{Alert: alert, Changed: changed})
}

// ---- Protocols ----

func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	protocols := s.core.ListProtocols()
	if r.URL.Query().Get("active") == "true" {
		protocols = s.core.ListActiveProtocols()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocols": protocols,
		"count":     len(protocols),
	})
}

func (s *Server) handleGetProtocol(w http.ResponseWriter, r *http.Request) {
	p, err := s.core.GetProtocol(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	completed, total, _ := s.core.ProtocolProgress(p.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"protocol":  p,
		"completed": completed,
		"total":     total,
	})
}

func (s *Server) handleActivateProtocol(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	changed, err := s.core.ActivateProtocol(id, req.By)
	s.writeProtocol(w, id, changed, err)
}

func (s *Server) handleDeactivateProtocol(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	changed, err := s.core.DeactivateProtocol(id)
	s.writeProtocol(w, id, changed, err)
}

func (s *Server) handleStartDrill(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	changed, err := s.core.StartDrill(id, req.By)
	s.writeProtocol(w, id, changed, err)
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	changed, err := s.core.CompleteStep(id, r.PathValue("stepID"), req.By)
	s.writeProtocol(w, id, changed, err)
}

func (s *Server) writeProtocol(w http.ResponseWriter, id string, changed bool, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.core.GetProtocol(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocolResponse{Protocol: p, Changed: changed})
}

// ---- Modules ----

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules := s.core.ModuleStatuses()
	writeJSON(w, http.StatusOK, map[string]any{
		"modules":   modules,
		"count":     len(modules),
		"connected": s.core.ConnectedModules(),
	})
}

func (s *Server) handleRegisterModule(w http.ResponseWriter, r *http.Request) {
	var req registerModuleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := s.core.RegisterModule(req.ModuleID, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.writeModule(w, r.PathValue("id"), s.core.Heartbeat(r.PathValue("id")))
}

func (s *Server) handleDisconnectModule(w http.ResponseWriter, r *http.Request) {
	s.writeModule(w, r.PathValue("id"), s.core.DisconnectModule(r.PathValue("id")))
}

func (s *Server) handleReportQuality(w http.ResponseWriter, r *http.Request) {
	var req qualityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	s.writeModule(w, id, s.core.ReportModuleQuality(id, req.Quality))
}

func (s *Server) writeModule(w http.ResponseWriter, id string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	classification, err := s.core.ClassifyModule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"module_id":      id,
		"classification": classification,
	})
}

// ---- Helpers ----

// decodeBody decodes an optional JSON body; an empty body leaves v untouched
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v: %w", err, types.ErrInvalidArgument)
	}
	return nil
}

// parseFilter reads status, severity, kind, source and limit query
// parameters; list values are comma separated
func parseFilter(r *http.Request) (alerter.Filter, error) {
	q := r.URL.Query()
	var filter alerter.Filter

	for _, v := range splitList(q.Get("status")) {
		status, err := types.ParseAlertStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, v := range splitList(q.Get("severity")) {
		severity, err := types.ParseSeverity(v)
		if err != nil {
			return filter, err
		}
		filter.Severities = append(filter.Severities, severity)
	}
	for _, v := range splitList(q.Get("kind")) {
		kind, err := types.ParseAlertKind(v)
		if err != nil {
			return filter, err
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	filter.Source = q.Get("source")

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("query parameter %s must be a non-negative integer: %w", key, types.ErrInvalidArgument)
	}
	return n, nil
}
