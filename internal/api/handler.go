package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/core"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Twin is the twin surface served by the API. *twin.Twin satisfies it.
type Twin interface {
	ID() uuid.UUID
	Variant() twin.Variant
	IsRunning() bool
	SimulatedTime() time.Duration
	Snapshot() twin.Snapshot
	GetOPCUANodes() []core.NodeDefinition

	SetHeaterPower(float64) float64
	SetFeedFrequency(float64) float64
	SetSpoolPower(float64) float64
	SetWindDirection(int) int
	SetFeedSpeed(float64) float64
	SetHeaterTemperature(float64) float64
	SetSpoolSpeed(float64) float64
}

// Handler handles REST API requests for one twin
type Handler struct {
	name   string
	folder string
	twin   Twin
	rc     *config.RuntimeConfig
}

// NewHandler creates an API handler. folder is the OPC UA folder the twin's
// nodes are registered under.
func NewHandler(name, folder string, tw Twin, rc *config.RuntimeConfig) *Handler {
	return &Handler{name: name, folder: folder, twin: tw, rc: rc}
}

// Register mounts the API endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.HandleStatus)
	mux.HandleFunc("/api/state", h.HandleState)
	mux.HandleFunc("/api/setpoints", h.HandleSetpoints)
	mux.HandleFunc("/api/nodes", h.HandleNodes)
	mux.HandleFunc("/api/config", h.HandleConfig)
}

// HandleStatus handles GET /api/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		Name:          h.name,
		TwinID:        h.twin.ID().String(),
		Variant:       h.twin.Variant().String(),
		Running:       h.twin.IsRunning(),
		SimulatedTime: h.twin.SimulatedTime().Seconds(),
	}
	if h.rc != nil {
		resp.UpdateInterval = h.rc.GetUpdateInterval().String()
	}
	h.writeJSON(w, resp)
}

// HandleState handles GET /api/state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.twin.Snapshot())
}

// HandleSetpoints handles POST /api/setpoints and returns the resulting state.
func (h *Handler) HandleSetpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.writePreflight(w)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SetpointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	tw := h.twin
	if req.HeaterPower != nil {
		tw.SetHeaterPower(*req.HeaterPower)
	}
	if req.FeedFrequency != nil {
		tw.SetFeedFrequency(*req.FeedFrequency)
	}
	if req.FeedSpeed != nil {
		tw.SetFeedSpeed(*req.FeedSpeed)
	}
	if req.SpoolPower != nil {
		tw.SetSpoolPower(*req.SpoolPower)
	}
	if req.WindDirection != nil {
		tw.SetWindDirection(*req.WindDirection)
	}
	if req.HeaterTemperature != nil {
		tw.SetHeaterTemperature(*req.HeaterTemperature)
	}
	if req.SpoolSpeed != nil {
		tw.SetSpoolSpeed(*req.SpoolSpeed)
	}

	h.writeJSON(w, tw.Snapshot())
}

// HandleNodes handles GET /api/nodes
func (h *Handler) HandleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defs := h.twin.GetOPCUANodes()
	resp := NodeListResponse{Folder: h.folder, Nodes: make([]NodeInfo, 0, len(defs))}
	for _, def := range defs {
		resp.Nodes = append(resp.Nodes, NodeInfo{
			Name:        def.Name,
			NodeID:      fmt.Sprintf("ns=%d;s=%s.%s", core.NamespaceTwin, h.folder, def.Name),
			DataType:    def.DataType.String(),
			Unit:        def.Unit,
			Description: def.Description,
		})
	}
	h.writeJSON(w, resp)
}

// HandleConfig handles GET and POST /api/config
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.writePreflight(w)
		return
	}
	if h.rc == nil {
		http.Error(w, "Runtime config not available", http.StatusNotImplemented)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, configResponse(h.rc.Snapshot()))
	case http.MethodPost:
		h.handleConfigUpdate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UpdateInterval != nil {
		d, err := time.ParseDuration(*req.UpdateInterval)
		if err == nil {
			err = h.rc.SetUpdateInterval(d)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.DebugLogInterval != nil {
		d, err := time.ParseDuration(*req.DebugLogInterval)
		if err == nil {
			err = h.rc.SetDebugLogInterval(d)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.NoiseLevel != nil {
		if err := h.rc.SetNoiseLevel(*req.NoiseLevel); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.writeJSON(w, configResponse(h.rc.Snapshot()))
}

func configResponse(s config.RuntimeConfigSnapshot) ConfigResponse {
	return ConfigResponse{
		UpdateInterval:   s.UpdateInterval.String(),
		DebugLogInterval: s.DebugLogInterval.String(),
		NoiseLevel:       s.NoiseLevel,
	}
}

func (h *Handler) writePreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
