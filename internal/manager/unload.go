package manager

import (
	"context"
	"fmt"

	"residencyd/internal/loader"
	"residencyd/internal/residency"
)

// Unload drops one model from its loader and from the tracker. Unloading a
// model that is not resident is not an error.
func (m *Manager) Unload(ctx context.Context, id string) error {
	if id == "" {
		return ErrModelNotFound("(unspecified)")
	}
	if _, ok := m.byID[id]; !ok {
		return ErrModelNotFound(id)
	}
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.unloadFromLoader(ctx, id)
	m.tracker.TrackUnload(id)

	m.mu.Lock()
	if m.cur != nil && m.cur.ID == id {
		m.cur = nil
	}
	m.mu.Unlock()
	m.publisher.Publish(residency.Event{Name: "unload", ModelID: id})
	return nil
}

// UnloadAll asks every loader to release everything and then resets the
// residency table, even when some loaders failed.
func (m *Manager) UnloadAll(ctx context.Context) UnloadResult {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	var res UnloadResult
	for _, l := range m.loaders.All() {
		if err := m.release(ctx, l); err != nil {
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[l.Name()] = err.Error()
			m.log.Error().Err(err).Str("loader", l.Name()).Msg("release failed")
			continue
		}
		res.Released = append(res.Released, l.Name())
	}
	res.RecordsCleared = m.tracker.ResetAll("unload_all")
	m.tracker.Refresh()
	m.setCurrent(nil, StateReady, "")
	m.publisher.Publish(residency.Event{Name: "unload_all", Fields: map[string]any{"records": res.RecordsCleared, "failed": len(res.Failed)}})
	return res
}

func (m *Manager) release(ctx context.Context, l loader.Loader) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("release panicked: %v", p)
		}
	}()
	rctx, cancel := context.WithTimeout(ctx, m.releaseTimeout)
	defer cancel()
	return l.Release(rctx)
}

// Releasers returns one residency.Releaser per loader for the zombie killer.
// A successful release also clears the current model when it belonged to
// that loader.
func (m *Manager) Releasers() []residency.Releaser {
	loaders := m.loaders.All()
	out := make([]residency.Releaser, 0, len(loaders))
	for _, l := range loaders {
		out = append(out, managedReleaser{m: m, l: l})
	}
	return out
}

type managedReleaser struct {
	m *Manager
	l loader.Loader
}

func (r managedReleaser) Name() string { return r.l.Name() }

func (r managedReleaser) Release(ctx context.Context) error {
	if err := r.m.release(ctx, r.l); err != nil {
		return err
	}
	r.m.mu.Lock()
	if r.m.cur != nil && r.m.cur.Family == r.l.Family() {
		r.m.cur = nil
	}
	r.m.mu.Unlock()
	return nil
}
