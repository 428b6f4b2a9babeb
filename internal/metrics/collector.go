// Package metrics exposes residency state as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"residencyd/internal/residency"
)

const namespace = "residencyd"

// Source yields the state to export. *residency.Tracker satisfies it.
type Source interface {
	Snapshot() residency.Snapshot
}

// KillCounter reports completed zombie kill passes.
type KillCounter interface {
	KillsTotal() uint64
}

// Collector reads a tracker snapshot on every scrape. It never probes the
// device, so scrapes cannot stall on the driver.
type Collector struct {
	src   Source
	kills KillCounter

	modelVRAM  *prometheus.Desc
	modelRAM   *prometheus.Desc
	ghostVRAM  *prometheus.Desc
	ghostFlag  *prometheus.Desc
	gpuUp      *prometheus.Desc
	vramUsed   *prometheus.Desc
	vramFree   *prometheus.Desc
	vramTotal  *prometheus.Desc
	baseline   *prometheus.Desc
	killsTotal *prometheus.Desc
	resets     *prometheus.Desc
}

// NewCollector builds a collector. kills may be nil.
func NewCollector(src Source, kills KillCounter) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:        src,
		kills:      kills,
		modelVRAM:  desc("model_vram_mb", "Attributed VRAM per resident model in MB (approximate).", "id", "name"),
		modelRAM:   desc("model_ram_mb", "Attributed process RAM per resident model in MB (approximate).", "id", "name"),
		ghostVRAM:  desc("ghost_vram_mb", "VRAM not explained by resident models, in MB."),
		ghostFlag:  desc("ghost_detected", "1 when ghost memory is currently detected."),
		gpuUp:      desc("gpu_available", "1 when the tracked accelerator could be sampled."),
		vramUsed:   desc("gpu_vram_used_mb", "Used VRAM on the tracked device in MB."),
		vramFree:   desc("gpu_vram_free_mb", "Free VRAM on the tracked device in MB."),
		vramTotal:  desc("gpu_vram_total_mb", "Total VRAM on the tracked device in MB."),
		baseline:   desc("baseline_vram_mb", "VRAM in use when the baseline was recorded, in MB."),
		killsTotal: desc("zombie_kills_total", "Completed zombie kill passes."),
		resets:     desc("residency_resets_total", "Residency table resets."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.modelVRAM, c.modelRAM, c.ghostVRAM, c.ghostFlag, c.gpuUp,
		c.vramUsed, c.vramFree, c.vramTotal, c.baseline, c.killsTotal, c.resets,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	for _, r := range s.Models {
		ch <- prometheus.MustNewConstMetric(c.modelVRAM, prometheus.GaugeValue, r.AttributedVRAMMB, r.ID, r.DisplayName)
		ch <- prometheus.MustNewConstMetric(c.modelRAM, prometheus.GaugeValue, r.AttributedRAMMB, r.ID, r.DisplayName)
	}
	ch <- prometheus.MustNewConstMetric(c.ghostVRAM, prometheus.GaugeValue, s.Ghost.GhostVRAMMB)
	ch <- prometheus.MustNewConstMetric(c.ghostFlag, prometheus.GaugeValue, boolFloat(s.Ghost.Detected))
	ch <- prometheus.MustNewConstMetric(c.gpuUp, prometheus.GaugeValue, boolFloat(s.GPUAvailable))
	if s.GPUAvailable {
		ch <- prometheus.MustNewConstMetric(c.vramUsed, prometheus.GaugeValue, s.Sample.UsedMB)
		ch <- prometheus.MustNewConstMetric(c.vramFree, prometheus.GaugeValue, s.Sample.FreeMB)
		ch <- prometheus.MustNewConstMetric(c.vramTotal, prometheus.GaugeValue, s.Sample.TotalMB)
	}
	ch <- prometheus.MustNewConstMetric(c.baseline, prometheus.GaugeValue, s.BaselineVRAMMB)
	ch <- prometheus.MustNewConstMetric(c.resets, prometheus.CounterValue, float64(s.Resets))
	if c.kills != nil {
		ch <- prometheus.MustNewConstMetric(c.killsTotal, prometheus.CounterValue, float64(c.kills.KillsTotal()))
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ prometheus.Collector = (*Collector)(nil)
