package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"residencyd/internal/catalog"
	"residencyd/internal/loader"
	"residencyd/internal/residency"
)

type Manager struct {
	mu       sync.RWMutex
	state    State
	cur      *ModelInfo
	err      string
	registry []catalog.Descriptor
	byID     map[string]catalog.Descriptor

	loaders   *loader.Set
	tracker   *residency.Tracker
	zombie    *residency.ZombieKiller
	publisher residency.EventPublisher
	log       zerolog.Logger

	// switchMu serializes Switch, Unload and UnloadAll.
	switchMu       sync.Mutex
	loadTimeout    time.Duration
	releaseTimeout time.Duration
	startTime      time.Time
}

// New builds a Manager over a registry, loaders and tracker with default
// timeouts.
func New(reg []catalog.Descriptor, loaders *loader.Set, tracker *residency.Tracker) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, Loaders: loaders, Tracker: tracker})
}

// Ready reports whether the baseline is recorded and the last switch did
// not fail.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()
	if state == StateError {
		return false
	}
	return m.tracker.BaselineRecorded()
}

func (m *Manager) Tracker() *residency.Tracker { return m.tracker }

// SetZombieKiller attaches the killer reported in Status. The killer is
// usually built after the manager because it needs Releasers.
func (m *Manager) SetZombieKiller(k *residency.ZombieKiller) {
	m.mu.Lock()
	m.zombie = k
	m.mu.Unlock()
}

func (m *Manager) ZombieKiller() *residency.ZombieKiller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zombie
}

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *ModelInfo
	if m.cur != nil {
		c := *m.cur
		cur = &c
	}
	return Snapshot{State: m.state, CurrentModel: cur, Err: m.err}
}

// Descriptor looks up a registered model.
func (m *Manager) Descriptor(id string) (catalog.Descriptor, bool) {
	d, ok := m.byID[id]
	return d, ok
}

// Registry returns a copy of the registered descriptors.
func (m *Manager) Registry() []catalog.Descriptor {
	out := make([]catalog.Descriptor, len(m.registry))
	copy(out, m.registry)
	return out
}

func (m *Manager) setCurrent(info *ModelInfo, state State, errMsg string) {
	m.mu.Lock()
	m.cur = info
	m.state = state
	m.err = errMsg
	m.mu.Unlock()
}
