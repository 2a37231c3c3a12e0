package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// DefaultStartupGrace is how long readiness reports startup in progress.
const DefaultStartupGrace = 5 * time.Second

// Status represents the health status response
type Status struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check reports whether one dependency is ready.
type Check func() bool

type namedCheck struct {
	name  string
	check Check
}

// Handler handles health check endpoints
type Handler struct {
	startTime    time.Time
	startupGrace time.Duration

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHandler creates a new health handler
func NewHandler() *Handler {
	return &Handler{
		startTime:    time.Now(),
		startupGrace: DefaultStartupGrace,
	}
}

// AddCheck registers a readiness check under name.
func (h *Handler) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	sort.Slice(h.checks, func(i, j int) bool { return h.checks[i].name < h.checks[j].name })
}

// HandleLive handles the liveness probe
// Returns 200 if the process is running
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, Status{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// HandleReady handles the readiness probe
// Returns 200 once startup is over and every registered check passes
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	allHealthy := true

	h.mu.RLock()
	for _, c := range h.checks {
		if c.check() {
			checks[c.name] = "healthy"
		} else {
			checks[c.name] = "not_ready"
			allHealthy = false
		}
	}
	h.mu.RUnlock()

	if time.Since(h.startTime) > h.startupGrace {
		checks["startup"] = "complete"
	} else {
		checks["startup"] = "in_progress"
		allHealthy = false
	}

	status := Status{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	code := http.StatusOK
	status.Status = "ready"
	if !allHealthy {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeStatus(w, code, status)
}

// HandleHealth handles the combined health endpoint (for Docker HEALTHCHECK)
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.HandleReady(w, r)
}

// Register mounts the health endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/health/live", h.HandleLive)
	mux.HandleFunc("/health/ready", h.HandleReady)
}

func writeStatus(w http.ResponseWriter, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
