//go:build !nonvml
// +build !nonvml

package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// reinitInterval rate-limits Init retries after a transient Init failure.
const reinitInterval = 30 * time.Second

// NVML samples an NVIDIA device through the driver's management library.
type NVML struct {
	mu          sync.Mutex
	deviceIndex int
	initialized bool
	initErr     error
	lastInit    time.Time
	log         zerolog.Logger

	initFn func() nvml.Return
	now    func() time.Time
}

// NewNVML returns a probe for the device at index. Call Init before Sample.
func NewNVML(index int, log *zerolog.Logger) *NVML {
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("component", "nvml").Logger()
	}
	return &NVML{deviceIndex: index, log: l, initFn: nvml.Init, now: time.Now}
}

// Init loads the driver library, retrying transient failures with
// exponential backoff. A missing library or permission failure is permanent
// and yields ErrUnavailable; the probe then reports unavailable forever.
// Any other failure is retried from Sample and Devices at most once per
// reinitInterval.
func (p *NVML) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	op := func() error {
		err := initError(p.initFn())
		if errors.Is(err, ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		p.log.Warn().Err(err).Dur("retry_in", next).Msg("nvml init failed")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	p.lastInit = p.now()
	if err != nil {
		p.initErr = err
		return err
	}
	p.initialized = true
	p.initErr = nil
	return nil
}

// Shutdown releases the driver library.
func (p *NVML) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}
	p.initialized = false
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

// ready reports whether the library is loaded, retrying a transiently
// failed Init once the rate limit allows.
func (p *NVML) ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return true
	}
	if p.initErr == nil || errors.Is(p.initErr, ErrUnavailable) {
		return false
	}
	now := p.now()
	if now.Sub(p.lastInit) < reinitInterval {
		return false
	}
	p.lastInit = now
	if err := initError(p.initFn()); err != nil {
		p.initErr = err
		p.log.Debug().Err(err).Msg("nvml re-init failed")
		return false
	}
	p.initialized = true
	p.initErr = nil
	p.log.Info().Msg("nvml initialized on retry")
	return true
}

func initError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	if permanentReturn(ret) {
		return fmt.Errorf("%w: nvml init: %s", ErrUnavailable, nvml.ErrorString(ret))
	}
	return fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
}

// Sample reads memory counters of the configured device.
func (p *NVML) Sample() (Sample, error) {
	if !p.ready() {
		return Sample{}, ErrUnavailable
	}
	dev, ret := nvml.DeviceGetHandleByIndex(p.deviceIndex)
	if ret != nvml.SUCCESS {
		return Sample{}, classify("device handle", ret)
	}
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return Sample{}, classify("memory info", ret)
	}
	return NewSample(toMB(mem.Total), toMB(mem.Free)), nil
}

// Devices enumerates all devices. Per-device read failures leave the
// corresponding fields zero; the device is still listed.
func (p *NVML) Devices() ([]Device, error) {
	if !p.ready() {
		return nil, ErrUnavailable
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, classify("device count", ret)
	}
	out := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		d := Device{Index: i}
		d.Name, _ = dev.GetName()
		d.UUID, _ = dev.GetUUID()
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			d.TotalMB = toMB(mem.Total)
			d.FreeMB = toMB(mem.Free)
			d.UsedMB = d.TotalMB - d.FreeMB
		}
		if util, ret := dev.GetUtilizationRates(); ret == nvml.SUCCESS {
			d.LoadPercent = util.Gpu
			d.MemoryUtil = util.Memory
		}
		d.TemperatureC, _ = dev.GetTemperature(nvml.TEMPERATURE_GPU)
		if procs, ret := dev.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
			for _, pi := range procs {
				d.Processes = append(d.Processes, ProcessUsage{PID: pi.Pid, UsedMB: toMB(pi.UsedGpuMemory)})
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func permanentReturn(ret nvml.Return) bool {
	switch ret {
	case nvml.ERROR_LIBRARY_NOT_FOUND, nvml.ERROR_DRIVER_NOT_LOADED, nvml.ERROR_NO_PERMISSION,
		nvml.ERROR_NOT_FOUND, nvml.ERROR_INVALID_ARGUMENT, nvml.ERROR_UNINITIALIZED,
		nvml.ERROR_GPU_IS_LOST, nvml.ERROR_FUNCTION_NOT_FOUND:
		return true
	}
	return false
}

func classify(op string, ret nvml.Return) error {
	if permanentReturn(ret) {
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, op, nvml.ErrorString(ret))
	}
	return fmt.Errorf("nvml %s: %s", op, nvml.ErrorString(ret))
}

var (
	_ Probe        = (*NVML)(nil)
	_ DeviceLister = (*NVML)(nil)
)
