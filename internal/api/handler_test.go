package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

func newTestServer(t *testing.T) (*http.ServeMux, *twin.Twin) {
	t.Helper()
	tw, err := twin.New(twin.Config{Variant: twin.RegressionDynamic})
	require.NoError(t, err)
	rc := config.NewRuntimeConfig(&config.Config{NoiseLevel: 0.01}, tw)

	mux := http.NewServeMux()
	NewHandler("fred-1", "FiberTwin", tw, rc).Register(mux)
	return mux, tw
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	mux, tw := newTestServer(t)
	tw.Advance(2 * time.Second)

	resp := decode[StatusResponse](t, do(t, mux, http.MethodGet, "/api/status", ""))
	assert.Equal(t, StatusResponse{
		Name:           "fred-1",
		TwinID:         tw.ID().String(),
		Variant:        "regression-dynamic",
		Running:        false,
		SimulatedTime:  2,
		UpdateInterval: "100ms",
	}, resp)
}

func TestState(t *testing.T) {
	mux, tw := newTestServer(t)
	tw.SetHeaterPower(0.4)

	snap := decode[twin.Snapshot](t, do(t, mux, http.MethodGet, "/api/state", ""))
	assert.Equal(t, tw.Snapshot(), snap)

	rec := do(t, mux, http.MethodPost, "/api/state", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSetpoints(t *testing.T) {
	mux, tw := newTestServer(t)

	body := `{"heaterPower":0.6,"feedFrequency":250,"spoolPower":0.3,"windDirection":1}`
	snap := decode[twin.Snapshot](t, do(t, mux, http.MethodPost, "/api/setpoints", body))

	assert.Equal(t, 0.6, snap.HeaterPower)
	assert.Equal(t, twin.MaxFeedFrequency, snap.FeedFrequency, "out of range values are clamped")
	assert.Equal(t, 0.3, snap.SpoolPower)
	assert.Equal(t, 1, snap.WindDirection)
	assert.Equal(t, 0.6, tw.HeaterPower())

	snap = decode[twin.Snapshot](t, do(t, mux, http.MethodPost, "/api/setpoints", `{"feedSpeed":0.01}`))
	assert.InDelta(t, 32.0, snap.FeedFrequency, 1e-9)
	assert.Equal(t, 0.6, snap.HeaterPower, "omitted fields are unchanged")
}

func TestSetpointsRejectsBadInput(t *testing.T) {
	mux, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/setpoints", "{").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/setpoints", "").Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodOptions, "/api/setpoints", "").Code)
}

func TestNodes(t *testing.T) {
	mux, tw := newTestServer(t)

	resp := decode[NodeListResponse](t, do(t, mux, http.MethodGet, "/api/nodes", ""))
	assert.Equal(t, "FiberTwin", resp.Folder)
	require.Len(t, resp.Nodes, len(tw.GetOPCUANodes()))

	var found bool
	for _, n := range resp.Nodes {
		if n.Name == "HeaterTemperature" {
			found = true
			assert.Equal(t, "ns=2;s=FiberTwin.HeaterTemperature", n.NodeID)
			assert.Equal(t, "Double", n.DataType)
		}
	}
	assert.True(t, found)
}

func TestConfig(t *testing.T) {
	mux, tw := newTestServer(t)

	resp := decode[ConfigResponse](t, do(t, mux, http.MethodGet, "/api/config", ""))
	assert.Equal(t, ConfigResponse{UpdateInterval: "100ms", DebugLogInterval: "1s", NoiseLevel: 0.01}, resp)

	body := `{"updateInterval":"50ms","noiseLevel":0.02}`
	resp = decode[ConfigResponse](t, do(t, mux, http.MethodPost, "/api/config", body))
	assert.Equal(t, "50ms", resp.UpdateInterval)
	assert.Equal(t, 0.02, resp.NoiseLevel)
	assert.Equal(t, 50*time.Millisecond, tw.UpdateInterval())
}

func TestConfigRejectsOutOfRange(t *testing.T) {
	mux, tw := newTestServer(t)

	for _, body := range []string{
		`{"updateInterval":"1m"}`,
		`{"updateInterval":"soon"}`,
		`{"debugLogInterval":"1ms"}`,
		`{"noiseLevel":0.5}`,
		`not json`,
	} {
		rec := do(t, mux, http.MethodPost, "/api/config", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, twin.DefaultUpdateInterval, tw.UpdateInterval())
}
