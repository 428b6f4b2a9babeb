package types

// ModelsResponse wraps the list of models returned by GET /v1/models.
type ModelsResponse struct {
	// Registered models.
	Models []Model `json:"models"`
	// Currently selected model, if any.
	// example: juggernaut-xl
	Current string `json:"current,omitempty" example:"juggernaut-xl"`
}

// SwitchRequest is the body of POST /v1/models/switch.
type SwitchRequest struct {
	// Model to make current.
	// example: juggernaut-xl
	Model string `json:"model" example:"juggernaut-xl"`
}

// SwitchResponse reports the outcome of a switch.
type SwitchResponse struct {
	// example: moondream-2
	Previous string `json:"previous,omitempty" example:"moondream-2"`
	// example: juggernaut-xl
	Current string `json:"current" example:"juggernaut-xl"`
	// False when the requested model was already current.
	// example: true
	Changed bool        `json:"changed" example:"true"`
	Ghost   GhostStatus `json:"ghost_memory"`
}

// UnloadResponse reports an unload or unload-all action.
type UnloadResponse struct {
	// Model unloaded by POST /v1/models/{id}/unload.
	// example: juggernaut-xl
	Unloaded string `json:"unloaded,omitempty" example:"juggernaut-xl"`
	// Loaders that released successfully.
	Released []string `json:"released"`
	// Loader name to error message for failed releases.
	Failed map[string]string `json:"failed,omitempty"`
	// Residency records removed.
	// example: 2
	RecordsCleared int         `json:"records_cleared" example:"2"`
	Ghost          GhostStatus `json:"ghost_memory"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// GhostStatus is the ghost memory classification.
type GhostStatus struct {
	// example: true
	Detected bool `json:"detected" example:"true"`
	// Unexplained VRAM in MB; 0 when not detected.
	// example: 3000
	GhostVRAMMB float64 `json:"ghost_vram_mb" example:"3000"`
	// none, medium or high.
	// example: high
	Severity string `json:"severity" example:"high"`
	// example: 9000
	EffectiveVRAMMB float64 `json:"effective_vram_mb" example:"9000"`
	// example: 6000
	ExpectedVRAMMB float64 `json:"expected_vram_mb" example:"6000"`
	// example: true
	GPUAvailable bool `json:"gpu_available" example:"true"`
	// example: 1700000000
	CheckedAtUnix int64 `json:"checked_at_unix" example:"1700000000"`
}

// GPUSample is the memory counters of the tracked device.
type GPUSample struct {
	// example: 24576
	TotalMB float64 `json:"total_mb" example:"24576"`
	// example: 8200
	UsedMB float64 `json:"used_mb" example:"8200"`
	// example: 16376
	FreeMB float64 `json:"free_mb" example:"16376"`
}

// KillSummary describes the most recent zombie kill pass.
type KillSummary struct {
	// example: 1700000000
	AtUnix int64 `json:"at_unix" example:"1700000000"`
	// example: 3000
	BeforeGhostMB float64 `json:"before_ghost_mb" example:"3000"`
	// example: 0
	AfterGhostMB   float64           `json:"after_ghost_mb" example:"0"`
	Released       []string          `json:"released"`
	Failed         map[string]string `json:"failed,omitempty"`
	RecordsCleared int               `json:"records_cleared"`
	Cleared        bool              `json:"cleared"`
}

// ZombieKillerConfig is returned by GET /v1/system/zombie-killer.
type ZombieKillerConfig struct {
	// example: false
	Enabled bool `json:"enabled" example:"false"`
	// Check interval in seconds.
	// example: 30
	Interval int `json:"interval" example:"30"`
	// disabled, idle or killing.
	// example: idle
	State string `json:"state" example:"idle"`
	// example: 0
	KillsTotal uint64       `json:"kills_total" example:"0"`
	LastKill   *KillSummary `json:"last_kill,omitempty"`
}

// ZombieKillerUpdate is the body of POST /v1/system/zombie-killer.
// Omitted fields are left unchanged.
type ZombieKillerUpdate struct {
	// example: true
	Enabled *bool `json:"enabled,omitempty" example:"true"`
	// Seconds; values below the floor are raised to it.
	// example: 30
	Interval *int `json:"interval,omitempty" example:"30"`
}

// StatusResponse is returned by GET /v1/system/status.
type StatusResponse struct {
	// Manager state (ready, loading, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// example: juggernaut-xl
	CurrentModel string `json:"current_model,omitempty" example:"juggernaut-xl"`
	// Last switch error, if any.
	Error string `json:"error,omitempty"`
	// example: 2000
	BaselineVRAMMB float64 `json:"baseline_vram_mb" example:"2000"`
	// example: 512
	BaselineRAMMB float64 `json:"baseline_ram_mb" example:"512"`
	// example: true
	BaselineRecorded bool       `json:"baseline_recorded" example:"true"`
	GPUAvailable     bool       `json:"gpu_available"`
	GPU              *GPUSample `json:"gpu,omitempty"`
	Ghost            GhostStatus `json:"ghost_memory"`
	// Alias of ghost_memory.detected.
	ZombieDetected bool                `json:"zombie_detected"`
	LoadedModels   []LoadedModel       `json:"loaded_models"`
	ZombieKiller   *ZombieKillerConfig `json:"zombie_killer,omitempty"`
	// Number of residency table resets since start.
	// example: 0
	Resets uint64 `json:"resets" example:"0"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// GPUProcess is GPU memory held by one OS process.
type GPUProcess struct {
	// example: 4242
	PID uint32 `json:"pid" example:"4242"`
	// example: 6100
	UsedMB float64 `json:"used_mb" example:"6100"`
}

// GPUInfo is one accelerator as reported by the driver.
type GPUInfo struct {
	// example: 0
	ID int `json:"id" example:"0"`
	// example: NVIDIA GeForce RTX 4090
	Name string `json:"name" example:"NVIDIA GeForce RTX 4090"`
	UUID string `json:"uuid,omitempty"`
	// GPU utilization percent.
	// example: 37
	Load uint32 `json:"load" example:"37"`
	// example: 22
	MemoryUtilization uint32 `json:"memory_utilization" example:"22"`
	// Celsius.
	// example: 61
	Temperature uint32       `json:"temperature" example:"61"`
	VRAMTotalMB float64      `json:"vram_total_mb"`
	VRAMUsedMB  float64      `json:"vram_used_mb"`
	VRAMFreeMB  float64      `json:"vram_free_mb"`
	Processes   []GPUProcess `json:"processes,omitempty"`
}

// MetricsResponse is returned by GET /v1/system/metrics.
type MetricsResponse struct {
	// Host CPU percent.
	// example: 12.5
	CPU float64 `json:"cpu" example:"12.5"`
	// Host RAM percent.
	// example: 41.2
	Memory float64 `json:"memory" example:"41.2"`
	// example: 850
	ProcessRSSMB float64       `json:"process_rss_mb" example:"850"`
	GPUs         []GPUInfo     `json:"gpus"`
	LoadedModels []LoadedModel `json:"loaded_models"`
	GhostMemory  GhostStatus   `json:"ghost_memory"`
}

// DiagnosticsResponse is returned by GET /diagnostics/gpus.
type DiagnosticsResponse struct {
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	GPUs      []GPUInfo `json:"gpus"`
}
