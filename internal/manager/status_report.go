package manager

import (
	"time"

	"residencyd/pkg/types"
)

// ListModels returns every registered model with its footprint history.
// Models never measured report their expected footprint as last known.
func (m *Manager) ListModels() []types.Model {
	cat := m.tracker.Catalog()
	out := make([]types.Model, 0, len(m.registry))
	for _, d := range m.registry {
		expected := cat.Expected(d.ID)
		last := m.tracker.LastKnownVRAM(d.ID)
		if last <= 0 {
			last = expected
		}
		out = append(out, types.Model{
			ID:              d.ID,
			Name:            d.DisplayName(),
			Family:          d.Family.String(),
			ExpectedVRAMMB:  expected,
			LastKnownVRAMMB: last,
			Loaded:          m.tracker.IsLoaded(d.ID),
			Description:     d.Description,
		})
	}
	return out
}

// CurrentID returns the current model id or "".
func (m *Manager) CurrentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return ""
	}
	return m.cur.ID
}

// Status builds the detailed response for /v1/system/status. It refreshes
// the ghost classification if the cached one is stale.
func (m *Manager) Status() types.StatusResponse {
	ghost := m.tracker.GhostStatus()
	snap := m.tracker.Snapshot()
	ms := m.Snapshot()

	resp := types.StatusResponse{
		State:            string(ms.State),
		Error:            ms.Err,
		BaselineVRAMMB:   snap.BaselineVRAMMB,
		BaselineRAMMB:    snap.BaselineRAMMB,
		BaselineRecorded: snap.BaselineRecorded,
		GPUAvailable:     snap.GPUAvailable,
		Ghost:            GhostDTO(ghost),
		ZombieDetected:   ghost.Detected,
		LoadedModels:     LoadedDTOs(snap.Models),
		Resets:           snap.Resets,
		UptimeSeconds:    int64(time.Since(m.startTime) / time.Second),
		ServerTimeUnix:   time.Now().Unix(),
	}
	if ms.CurrentModel != nil {
		resp.CurrentModel = ms.CurrentModel.ID
	}
	if snap.GPUAvailable {
		resp.GPU = &types.GPUSample{TotalMB: snap.Sample.TotalMB, UsedMB: snap.Sample.UsedMB, FreeMB: snap.Sample.FreeMB}
	}
	if k := m.ZombieKiller(); k != nil {
		z := ZombieDTO(k.Config())
		resp.ZombieKiller = &z
	}
	return resp
}
