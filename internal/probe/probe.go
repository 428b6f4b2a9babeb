// Package probe reads accelerator memory counters from the underlying driver.
//
// A Probe never panics on a missing device. Callers distinguish a missing
// accelerator (ErrUnavailable) from a transient read failure with errors.Is.
package probe

import (
	"errors"
	"time"
)

// ErrUnavailable reports that no compatible accelerator is visible: the
// driver library is absent, no device exists at the configured index, or the
// process lacks permission to query it.
var ErrUnavailable = errors.New("accelerator unavailable")

const bytesPerMB = 1024 * 1024

// Sample is a point-in-time read of one device's memory counters, in MB.
// UsedMB is always TotalMB - FreeMB, the driver's view independent of any
// allocator bookkeeping.
type Sample struct {
	TotalMB float64   `json:"total_mb"`
	FreeMB  float64   `json:"free_mb"`
	UsedMB  float64   `json:"used_mb"`
	TakenAt time.Time `json:"taken_at"`
}

// NewSample builds a Sample from total and free MB.
func NewSample(totalMB, freeMB float64) Sample {
	used := totalMB - freeMB
	if used < 0 {
		used = 0
	}
	return Sample{TotalMB: totalMB, FreeMB: freeMB, UsedMB: used, TakenAt: time.Now()}
}

// Probe samples memory of the device used for residency accounting.
type Probe interface {
	Sample() (Sample, error)
}

// ProcessUsage is GPU memory held by a single OS process.
type ProcessUsage struct {
	PID    uint32  `json:"pid"`
	UsedMB float64 `json:"used_mb"`
}

// Device is a read-only observability view of one accelerator.
type Device struct {
	Index        int            `json:"id"`
	Name         string         `json:"name"`
	UUID         string         `json:"uuid,omitempty"`
	LoadPercent  uint32         `json:"load"`
	MemoryUtil   uint32         `json:"memory_utilization"`
	TemperatureC uint32         `json:"temperature"`
	TotalMB      float64        `json:"vram_total_mb"`
	UsedMB       float64        `json:"vram_used_mb"`
	FreeMB       float64        `json:"vram_free_mb"`
	Processes    []ProcessUsage `json:"processes,omitempty"`
}

// DeviceLister enumerates every visible accelerator.
type DeviceLister interface {
	Devices() ([]Device, error)
}

func toMB(b uint64) float64 { return float64(b) / bytesPerMB }
