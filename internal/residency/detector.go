package residency

import (
	"math"

	"residencyd/internal/catalog"
)

// attributionTolerance absorbs float rounding when checking that attributed
// VRAM fits inside the effective VRAM.
const attributionTolerance = 1e-6

// DetectInput is everything one classification pass needs.
type DetectInput struct {
	Available  bool
	UsedMB     float64
	BaselineMB float64
	IDs        []string
	Catalog    *catalog.Catalog
}

// Attribution is the per-model share computed by Attribute.
type Attribution struct {
	VRAMMB float64
	RAMMB  float64
}

// EffectiveVRAM is device usage above the baseline, floored at zero.
func EffectiveVRAM(usedMB, baselineMB float64) float64 {
	return math.Max(0, usedMB-baselineMB)
}

// ExpectedTotal sums the catalog footprint of every id.
func ExpectedTotal(ids []string, cat *catalog.Catalog) float64 {
	var sum float64
	for _, id := range ids {
		sum += cat.Expected(id)
	}
	return sum
}

// Classify compares effective against expected usage. Only a positive
// variance strictly above the ghost threshold counts as ghost memory.
func Classify(effectiveMB, expectedMB float64, th Thresholds) Classification {
	variance := effectiveMB - expectedMB
	c := Classification{
		Severity:        SeverityNone,
		EffectiveVRAMMB: effectiveMB,
		ExpectedTotalMB: expectedMB,
		VarianceMB:      variance,
	}
	if variance > th.GhostMB {
		c.IsGhost = true
		c.GhostMB = variance
		c.Severity = SeverityMedium
		if variance > th.HighSeverityMB {
			c.Severity = SeverityHigh
		}
	}
	return c
}

// Detect runs a full classification. An unavailable device is always Normal
// with zero effective usage.
func Detect(in DetectInput, th Thresholds) Classification {
	if !in.Available {
		return Classification{Severity: SeverityNone}
	}
	return Classify(EffectiveVRAM(in.UsedMB, in.BaselineMB), ExpectedTotal(in.IDs, in.Catalog), th)
}

// Attribute splits usage across ids. In normal mode effective VRAM is split
// evenly; in ghost mode each id is charged its catalog expectation so the
// surplus stays unattributed. RAM is split evenly in both modes.
//
// The second return is true when the VRAM shares overshot effectiveVRAM and
// had to be rescaled into range.
func Attribute(ids []string, effectiveVRAM, effectiveRAM float64, cls Classification, cat *catalog.Catalog) (map[string]Attribution, bool) {
	out := make(map[string]Attribution, len(ids))
	if len(ids) == 0 {
		return out, false
	}
	n := float64(len(ids))
	ram := math.Max(0, effectiveRAM) / n
	effectiveVRAM = math.Max(0, effectiveVRAM)

	var sum float64
	for _, id := range ids {
		vram := effectiveVRAM / n
		if cls.IsGhost {
			vram = cat.Expected(id)
		}
		vram = math.Max(0, vram)
		sum += vram
		out[id] = Attribution{VRAMMB: vram, RAMMB: ram}
	}

	if sum <= effectiveVRAM+attributionTolerance {
		return out, false
	}
	scale := 0.0
	if sum > 0 {
		scale = effectiveVRAM / sum
	}
	for id, a := range out {
		a.VRAMMB *= scale
		out[id] = a
	}
	return out, true
}
