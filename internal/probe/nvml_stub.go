//go:build nonvml
// +build nonvml

package probe

import (
	"context"

	"github.com/rs/zerolog"
)

// NVML stub used when building without NVIDIA libraries. Every call reports
// ErrUnavailable.
type NVML struct{}

func NewNVML(index int, log *zerolog.Logger) *NVML { return &NVML{} }

func (p *NVML) Init(ctx context.Context) error { return ErrUnavailable }

func (p *NVML) Shutdown() error { return nil }

func (p *NVML) Sample() (Sample, error) { return Sample{}, ErrUnavailable }

func (p *NVML) Devices() ([]Device, error) { return nil, ErrUnavailable }

var (
	_ Probe        = (*NVML)(nil)
	_ DeviceLister = (*NVML)(nil)
)
