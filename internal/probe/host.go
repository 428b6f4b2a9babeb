package probe

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSampler reads host-side memory counters.
type HostSampler interface {
	// ProcessRSSMB is the resident set size of this process.
	ProcessRSSMB() (float64, error)
}

// HostStats is a diagnostics-only snapshot of the host.
type HostStats struct {
	CPUPercent   float64 `json:"cpu"`
	RAMPercent   float64 `json:"memory"`
	ProcessRSSMB float64 `json:"process_memory_mb"`
}

// Host samples the current process and system through gopsutil.
type Host struct {
	proc *process.Process
}

// NewHost binds to the current process.
func NewHost() (*Host, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("host process: %w", err)
	}
	return &Host{proc: p}, nil
}

func (h *Host) ProcessRSSMB() (float64, error) {
	mi, err := h.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return toMB(mi.RSS), nil
}

// Stats collects CPU, RAM and RSS. Individual read failures leave zeros.
func (h *Host) Stats() HostStats {
	var s HostStats
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.RAMPercent = vm.UsedPercent
	}
	s.ProcessRSSMB, _ = h.ProcessRSSMB()
	return s
}

// FixedHost reports a constant RSS. Useful in tests.
type FixedHost float64

func (f FixedHost) ProcessRSSMB() (float64, error) { return float64(f), nil }

var (
	_ HostSampler = (*Host)(nil)
	_ HostSampler = FixedHost(0)
)
