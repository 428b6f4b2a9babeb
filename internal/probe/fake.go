package probe

import (
	"sync"
	"time"
)

// Fake is an in-memory probe for tests. Its counters and failure mode can be
// changed between calls.
type Fake struct {
	mu      sync.Mutex
	totalMB float64
	usedMB  float64
	err     error
	devices []Device
	calls   int
}

// NewFake returns a fake device with the given total and used MB.
func NewFake(totalMB, usedMB float64) *Fake {
	return &Fake{totalMB: totalMB, usedMB: usedMB}
}

// SetUsed changes the reported used MB.
func (f *Fake) SetUsed(mb float64) {
	f.mu.Lock()
	f.usedMB = mb
	f.mu.Unlock()
}

// SetErr makes subsequent Sample calls fail with err (nil clears it).
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// SetDevices sets the result of Devices.
func (f *Fake) SetDevices(ds []Device) {
	f.mu.Lock()
	f.devices = append([]Device(nil), ds...)
	f.mu.Unlock()
}

// Calls reports how many times Sample was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Sample() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Sample{}, f.err
	}
	return Sample{TotalMB: f.totalMB, FreeMB: f.totalMB - f.usedMB, UsedMB: f.usedMB, TakenAt: time.Now()}, nil
}

func (f *Fake) Devices() ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Device(nil), f.devices...), nil
}

var (
	_ Probe        = (*Fake)(nil)
	_ DeviceLister = (*Fake)(nil)
)
