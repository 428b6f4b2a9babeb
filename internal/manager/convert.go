package manager

import (
	"residencyd/internal/probe"
	"residencyd/internal/residency"
	"residencyd/pkg/types"
)

// GhostDTO converts a tracker ghost status for the API.
func GhostDTO(st residency.GhostStatus) types.GhostStatus {
	out := types.GhostStatus{
		Detected:        st.Detected,
		GhostVRAMMB:     st.GhostVRAMMB,
		Severity:        string(st.Severity),
		EffectiveVRAMMB: st.EffectiveVRAMMB,
		ExpectedVRAMMB:  st.ExpectedVRAMMB,
		GPUAvailable:    st.GPUAvailable,
	}
	if !st.CheckedAt.IsZero() {
		out.CheckedAtUnix = st.CheckedAt.Unix()
	}
	return out
}

// LoadedDTOs converts residency records for the API.
func LoadedDTOs(recs []residency.Record) []types.LoadedModel {
	out := make([]types.LoadedModel, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.LoadedModel{
			ID:           r.ID,
			Name:         r.DisplayName,
			VRAMMB:       r.AttributedVRAMMB,
			RAMMB:        r.AttributedRAMMB,
			LoadedAtUnix: r.LoadedAt.Unix(),
		})
	}
	return out
}

// ZombieDTO converts the killer configuration for the API.
func ZombieDTO(v residency.ZombieView) types.ZombieKillerConfig {
	out := types.ZombieKillerConfig{
		Enabled:    v.Enabled,
		Interval:   v.IntervalSeconds,
		State:      string(v.State),
		KillsTotal: v.KillsTotal,
	}
	if r := v.LastKill; r != nil {
		out.LastKill = &types.KillSummary{
			AtUnix:         r.At.Unix(),
			BeforeGhostMB:  r.BeforeGhostMB,
			AfterGhostMB:   r.AfterGhostMB,
			Released:       r.Released,
			Failed:         r.Failed,
			RecordsCleared: r.RecordsCleared,
			Cleared:        r.Cleared,
		}
	}
	return out
}

// GPUDTOs converts driver device views for the API.
func GPUDTOs(ds []probe.Device) []types.GPUInfo {
	out := make([]types.GPUInfo, 0, len(ds))
	for _, d := range ds {
		g := types.GPUInfo{
			ID:                d.Index,
			Name:              d.Name,
			UUID:              d.UUID,
			Load:              d.LoadPercent,
			MemoryUtilization: d.MemoryUtil,
			Temperature:       d.TemperatureC,
			VRAMTotalMB:       d.TotalMB,
			VRAMUsedMB:        d.UsedMB,
			VRAMFreeMB:        d.FreeMB,
		}
		for _, p := range d.Processes {
			g.Processes = append(g.Processes, types.GPUProcess{PID: p.PID, UsedMB: p.UsedMB})
		}
		out = append(out, g)
	}
	return out
}
