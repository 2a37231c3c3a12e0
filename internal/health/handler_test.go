package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, Status) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, st
}

func TestLive(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler().Register(mux)

	code, st := get(t, mux, "/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", st.Status)
	_, err := time.Parse(time.RFC3339, st.Timestamp)
	assert.NoError(t, err)
}

func TestReadyDuringStartup(t *testing.T) {
	mux := http.NewServeMux()
	h := NewHandler()
	h.Register(mux)

	code, st := get(t, mux, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", st.Status)
	assert.Equal(t, "in_progress", st.Checks["startup"])
}

func TestReadyFollowsChecks(t *testing.T) {
	mux := http.NewServeMux()
	h := NewHandler()
	h.startTime = time.Now().Add(-time.Minute)
	h.Register(mux)

	var running atomic.Bool
	h.AddCheck("twin_loop", running.Load)
	h.AddCheck("opcua_server", func() bool { return true })

	code, st := get(t, mux, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{
		"opcua_server": "healthy",
		"twin_loop":    "not_ready",
		"startup":      "complete",
	}, st.Checks)

	running.Store(true)
	code, st = get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", st.Status)
}
