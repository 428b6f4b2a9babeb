package manager

import (
	"context"
	"fmt"
	"time"

	"residencyd/internal/residency"
)

// Switch makes id the current model. The previous model is unloaded from
// its loader and then from the tracker before the new one is loaded, so the
// transition never counts both. Switches are serialized and refused until
// the tracker has recorded its baseline.
func (m *Manager) Switch(ctx context.Context, id string) (SwitchResult, error) {
	d, ok := m.byID[id]
	if !ok {
		return SwitchResult{}, ErrModelNotFound(id)
	}
	l, err := m.loaders.For(d.Family)
	if err != nil {
		return SwitchResult{}, ErrDependencyUnavailable(fmt.Sprintf("no loader configured for %s models", d.Family))
	}
	if !m.tracker.BaselineRecorded() {
		return SwitchResult{}, ErrDependencyUnavailable("baseline not recorded yet")
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	prev := m.Snapshot().CurrentModel
	res := SwitchResult{Current: id}
	if prev != nil {
		res.Previous = prev.ID
		if prev.ID == id && m.tracker.IsLoaded(id) {
			return res, nil
		}
	}
	res.Changed = true

	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()
	m.publisher.Publish(residency.Event{Name: "switch_start", ModelID: id, Fields: map[string]any{"previous": res.Previous}})
	start := time.Now()

	if prev != nil {
		m.unloadFromLoader(ctx, prev.ID)
		m.tracker.TrackUnload(prev.ID)
	}

	lctx, cancel := context.WithTimeout(ctx, m.loadTimeout)
	err = l.Load(lctx, id)
	cancel()
	if err != nil {
		m.setCurrent(nil, StateError, err.Error())
		m.log.Error().Err(err).Str("model", id).Str("loader", l.Name()).Msg("switch failed")
		m.publisher.Publish(residency.Event{Name: "switch_failed", ModelID: id, Fields: map[string]any{"error": err.Error()}})
		return SwitchResult{Previous: res.Previous}, loaderError{loader: l.Name(), id: id, err: err}
	}

	m.tracker.TrackLoad(id, d.DisplayName())
	m.setCurrent(&ModelInfo{ID: id, Name: d.DisplayName(), Family: d.Family}, StateReady, "")
	m.log.Info().Str("model", id).Str("previous", res.Previous).Dur("took", time.Since(start)).Msg("switch complete")
	m.publisher.Publish(residency.Event{Name: "switch_done", ModelID: id, Fields: map[string]any{"dur_ms": time.Since(start).Milliseconds()}})
	return res, nil
}

// unloadFromLoader asks the owning loader to drop id. Failures are logged
// only; unloading is best-effort.
func (m *Manager) unloadFromLoader(ctx context.Context, id string) {
	d, ok := m.byID[id]
	if !ok {
		return
	}
	l, err := m.loaders.For(d.Family)
	if err != nil {
		return
	}
	uctx, cancel := context.WithTimeout(ctx, m.releaseTimeout)
	defer cancel()
	if err := l.Unload(uctx, id); err != nil {
		m.log.Warn().Err(err).Str("model", id).Str("loader", l.Name()).Msg("loader unload failed")
	}
}
