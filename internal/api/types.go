package api

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	Name           string  `json:"name"`
	TwinID         string  `json:"twinId"`
	Variant        string  `json:"variant"`
	Running        bool    `json:"running"`
	SimulatedTime  float64 `json:"simulatedTimeSeconds"`
	UpdateInterval string  `json:"updateInterval"`
}

// SetpointsRequest is used for POST /api/setpoints. Omitted fields are left
// unchanged; values outside their range are clamped.
type SetpointsRequest struct {
	HeaterPower       *float64 `json:"heaterPower,omitempty"`
	FeedFrequency     *float64 `json:"feedFrequency,omitempty"`
	SpoolPower        *float64 `json:"spoolPower,omitempty"`
	WindDirection     *int     `json:"windDirection,omitempty"`
	FeedSpeed         *float64 `json:"feedSpeed,omitempty"`
	HeaterTemperature *float64 `json:"heaterTemperature,omitempty"`
	SpoolSpeed        *float64 `json:"spoolSpeed,omitempty"`
}

// NodeInfo describes an OPC UA node
type NodeInfo struct {
	Name        string `json:"name"`
	NodeID      string `json:"nodeId"`
	DataType    string `json:"dataType"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// NodeListResponse is returned by GET /api/nodes
type NodeListResponse struct {
	Folder string     `json:"folder"`
	Nodes  []NodeInfo `json:"nodes"`
}

// ConfigResponse is returned by GET /api/config
type ConfigResponse struct {
	UpdateInterval   string  `json:"updateInterval"`
	DebugLogInterval string  `json:"debugLogInterval"`
	NoiseLevel       float64 `json:"noiseLevel"`
}

// ConfigUpdateRequest is used for POST /api/config. Intervals are Go
// duration strings such as "50ms".
type ConfigUpdateRequest struct {
	UpdateInterval   *string  `json:"updateInterval,omitempty"`
	DebugLogInterval *string  `json:"debugLogInterval,omitempty"`
	NoiseLevel       *float64 `json:"noiseLevel,omitempty"`
}
