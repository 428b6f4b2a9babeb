package residency

import (
	"time"

	"github.com/rs/zerolog"

	"residencyd/internal/catalog"
	"residencyd/internal/probe"
)

// Default configuration values.
const (
	DefaultGhostThresholdMB     = 1500.0
	DefaultHighSeverityMB       = 2000.0
	DefaultSettleDelay          = time.Second
	DefaultBaselineRetryMax     = 5 * time.Second
	DefaultStatusMaxAge         = 2 * time.Second
	DefaultMaxTransientFailures = 3
	DefaultPollInterval         = 10 * time.Second
	MinPollInterval             = time.Second
)

// Config defines Tracker dependencies and tunables. Zero values select the
// defaults above.
type Config struct {
	// Probe samples the tracked device. Nil behaves as an absent accelerator.
	Probe probe.Probe
	// Host supplies process RSS for RAM attribution. Optional.
	Host    probe.HostSampler
	Catalog *catalog.Catalog

	GhostThresholdMB float64
	HighSeverityMB   float64

	// SettleDelay is waited before the baseline sample. Negative disables it.
	SettleDelay          time.Duration
	// BaselineRetryMax bounds how long transient baseline probe failures
	// are retried. Negative makes a single attempt.
	BaselineRetryMax     time.Duration
	StatusMaxAge         time.Duration
	MaxTransientFailures int

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Thresholds returns the configured guard bands with defaults applied.
func (c Config) Thresholds() Thresholds {
	th := Thresholds{GhostMB: c.GhostThresholdMB, HighSeverityMB: c.HighSeverityMB}
	if th.GhostMB <= 0 {
		th.GhostMB = DefaultGhostThresholdMB
	}
	if th.HighSeverityMB <= 0 {
		th.HighSeverityMB = DefaultHighSeverityMB
	}
	return th
}

type unavailableProbe struct{}

func (unavailableProbe) Sample() (probe.Sample, error) { return probe.Sample{}, probe.ErrUnavailable }
