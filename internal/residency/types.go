package residency

import (
	"time"

	"residencyd/internal/probe"
)

// Severity tiers a ghost classification by magnitude.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Record is one resident model. Attributed values are recomputed on every
// refresh and are never negative.
type Record struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"name"`
	AttributedVRAMMB float64   `json:"vram_mb"`
	// AttributedRAMMB is this daemon's own RSS growth since the baseline,
	// split evenly across records. Model weights held by loader backends
	// live in other processes and are not counted.
	AttributedRAMMB  float64   `json:"ram_mb"`
	LoadedAt         time.Time `json:"loaded_at"`
}

// Thresholds are the guard bands for ghost classification, in MB.
type Thresholds struct {
	GhostMB        float64
	HighSeverityMB float64
}

// Classification is the output of one detection pass.
type Classification struct {
	IsGhost         bool
	GhostMB         float64
	Severity        Severity
	EffectiveVRAMMB float64
	ExpectedTotalMB float64
	VarianceMB      float64
}

// GhostStatus is the caller-facing view of the last classification.
type GhostStatus struct {
	Detected        bool      `json:"detected"`
	GhostVRAMMB     float64   `json:"ghost_vram_mb"`
	Severity        Severity  `json:"severity"`
	EffectiveVRAMMB float64   `json:"effective_vram_mb"`
	ExpectedVRAMMB  float64   `json:"expected_vram_mb"`
	GPUAvailable    bool      `json:"gpu_available"`
	CheckedAt       time.Time `json:"checked_at"`
}

// Snapshot is a read-only projection of the tracker state. Taking one never
// probes the device.
type Snapshot struct {
	BaselineVRAMMB   float64
	BaselineRAMMB    float64
	BaselineRecorded bool
	GPUAvailable     bool
	Sample           probe.Sample
	Ghost            GhostStatus
	Models           []Record
	RefreshedAt      time.Time
	Resets           uint64
}
