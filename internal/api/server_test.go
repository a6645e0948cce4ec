package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/events"
	"github.com/opsguard/opsguard/internal/metrics"
	"github.com/opsguard/opsguard/internal/ops"
	"github.com/opsguard/opsguard/internal/protocol"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/opsguard/opsguard/internal/webui"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *ops.Core) {
	t.Helper()

	core := ops.New(ops.Options{Metrics: metrics.New(), Bus: events.NewBus(16)}, zerolog.Nop())
	s := NewServer(core, zerolog.Nop(), "")
	s.SetVersion("1.0.0", "abc123", "2026-01-01")
	s.SetLogBuffer(webui.NewLogBuffer(10))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, core
}

func newAlert(severity types.Severity) alerter.NewAlert {
	return alerter.NewAlert{Kind: types.KindSecurity, Severity: severity, Title: "Motion in vault", Source: "cam-07"}
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

// TestAlertRoutes checks the alert create, list and transition endpoints.
func TestAlertRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	code, created := do(t, http.MethodPost, srv.URL+"/api/alerts",
		`{"kind":"security","severity":"critical","title":"Door forced","source":"door-east"}`)
	require.Equal(t, http.StatusCreated, code)
	id := created["id"].(string)
	require.Equal(t, "active", created["status"])

	code, _ = do(t, http.MethodPost, srv.URL+"/api/alerts", `{"kind":"system","severity":"low","title":"Disk"}`)
	require.Equal(t, http.StatusCreated, code)

	code, list := do(t, http.MethodGet, srv.URL+"/api/alerts?severity=critical,high", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1.0, list["count"])

	code, acked := do(t, http.MethodPost, srv.URL+"/api/alerts/"+id+"/acknowledge", `{"by":"guard"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, acked["changed"])
	require.Equal(t, "acknowledged", acked["alert"].(map[string]any)["status"])

	code, resolved := do(t, http.MethodPost, srv.URL+"/api/alerts/"+id+"/resolve", `{"by":"guard","note":"secured"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "resolved", resolved["alert"].(map[string]any)["status"])

	code, again := do(t, http.MethodPost, srv.URL+"/api/alerts/"+id+"/resolve", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, again["changed"])

	code, stats := do(t, http.MethodGet, srv.URL+"/api/alerts/stats", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2.0, stats["total"])
}

// TestErrorMapping checks domain errors map onto HTTP status codes.
func TestErrorMapping(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/api/alerts/missing", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body["error"], "not found")

	code, _ = do(t, http.MethodPost, srv.URL+"/api/alerts", `{"kind":"weather","severity":"low","title":"x"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/api/alerts", `{"unexpected":true}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodGet, srv.URL+"/api/alerts?limit=-1", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/api/protocols/"+protocol.FireResponse+"/steps/"+protocol.FireResponse+"-step-1/complete", `{"by":"x"}`)
	require.Equal(t, http.StatusConflict, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/api/modules/ghost/heartbeat", "")
	require.Equal(t, http.StatusNotFound, code)
}

// TestProtocolRoutes checks activation and step completion over HTTP.
func TestProtocolRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	base := srv.URL + "/api/protocols/" + protocol.MedicalEmergency

	code, activated := do(t, http.MethodPost, base+"/activate", `{"by":"nurse"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, activated["changed"])

	code, step := do(t, http.MethodPost, base+"/steps/"+protocol.MedicalEmergency+"-step-1/complete", `{"by":"nurse"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, step["changed"])

	code, got := do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1.0, got["completed"])
	require.Equal(t, 4.0, got["total"])

	code, active := do(t, http.MethodGet, srv.URL+"/api/protocols?active=true", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1.0, active["count"])

	code, _ = do(t, http.MethodPost, base+"/deactivate", "")
	require.Equal(t, http.StatusOK, code)
}

// TestModuleRoutes checks registration, heartbeat and quality reporting.
func TestModuleRoutes(t *testing.T) {
	t.Parallel()

	srv, core := newTestServer(t)

	code, registered := do(t, http.MethodPost, srv.URL+"/api/modules", `{"module_id":"cam-01","version":"2.0"}`)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "cam-01", registered["module_id"])

	code, beat := do(t, http.MethodPost, srv.URL+"/api/modules/cam-01/heartbeat", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "good", beat["classification"])

	code, q := do(t, http.MethodPost, srv.URL+"/api/modules/cam-01/quality", `{"quality":"degraded"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "degraded", q["classification"])

	code, _ = do(t, http.MethodPost, srv.URL+"/api/modules/cam-01/quality", `{"quality":"great"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, gone := do(t, http.MethodPost, srv.URL+"/api/modules/cam-01/disconnect", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "poor", gone["classification"])
	require.Zero(t, core.ConnectedModules())

	code, list := do(t, http.MethodGet, srv.URL+"/api/modules", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1.0, list["count"])
	require.Equal(t, 0.0, list["connected"])
}

// TestHealthAndSnapshot checks the health summary endpoints.
func TestHealthAndSnapshot(t *testing.T) {
	t.Parallel()

	srv, core := newTestServer(t)
	_, err := core.ActivateProtocol(protocol.FireResponse, "alice")
	require.NoError(t, err)

	code, h := do(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", h["status"])
	require.Equal(t, "healthy", h["system"])
	require.Equal(t, 85.0, h["score"])
	require.Equal(t, "1.0.0", h["version"])

	code, snap := do(t, http.MethodGet, srv.URL+"/api/snapshot", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{"Fire Response"}, snap["active_protocols"])

	code, logs := do(t, http.MethodGet, srv.URL+"/api/logs?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0.0, logs["count"])
}

// TestDashboardAndMetrics checks the HTML page and the metrics endpoint.
func TestDashboardAndMetrics(t *testing.T) {
	t.Parallel()

	srv, core := newTestServer(t)
	_, err := core.CreateAlert(newAlert(types.SeverityHigh))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(page), "OpsGuard")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "opsguard_alerts_created_total")

	resp, err = http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestEventStream checks lifecycle events reach websocket clients.
func TestEventStream(t *testing.T) {
	t.Parallel()

	srv, core := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return core.Events().SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	alert, err := core.CreateAlert(newAlert(types.SeverityCritical))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt events.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.AlertCreated, evt.Type)
	require.Equal(t, alert.ID, evt.Subject)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return core.Events().SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestLogsRoutes checks log listing, the buffered count and clearing.
func TestLogsRoutes(t *testing.T) {
	t.Parallel()

	lb := webui.NewLogBuffer(10)
	logger := zerolog.New(lb)
	core := ops.New(ops.Options{}, logger)
	s := NewServer(core, logger, "")
	s.SetLogBuffer(lb)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	_, err := core.RegisterModule("cam-01", "2.0")
	require.NoError(t, err)
	require.NoError(t, core.DisconnectModule("cam-01"))

	code, logs := do(t, http.MethodGet, srv.URL+"/api/logs?level=warn", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1.0, logs["count"])
	require.Equal(t, 2.0, logs["buffered"])

	code, _ = do(t, http.MethodDelete, srv.URL+"/api/logs", "")
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, lb.Len())
}
