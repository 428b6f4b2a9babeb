package manager

import (
	"time"

	"github.com/rs/zerolog"

	"residencyd/internal/catalog"
	"residencyd/internal/loader"
	"residencyd/internal/residency"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultLoadTimeout    = 10 * time.Minute
	defaultReleaseTimeout = 30 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry []catalog.Descriptor
	Loaders  *loader.Set
	// Tracker is required in production; nil builds a tracker with an
	// unavailable probe.
	Tracker *residency.Tracker
	// Zombie is optional and only reported in Status.
	Zombie *residency.ZombieKiller

	LoadTimeout    time.Duration
	ReleaseTimeout time.Duration

	Publisher residency.EventPublisher
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateReady,
		byID:      make(map[string]catalog.Descriptor, len(cfg.Registry)),
		loaders:   cfg.Loaders,
		tracker:   cfg.Tracker,
		zombie:    cfg.Zombie,
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	for _, d := range cfg.Registry {
		if _, dup := m.byID[d.ID]; dup {
			continue
		}
		m.byID[d.ID] = d
		m.registry = append(m.registry, d)
	}
	if m.loaders == nil {
		m.loaders = loader.NewSet()
	}
	if m.tracker == nil {
		m.tracker = residency.New(residency.Config{SettleDelay: -1})
	}
	if m.publisher == nil {
		m.publisher = nopPublisher{}
	}
	if cfg.LoadTimeout <= 0 {
		m.loadTimeout = defaultLoadTimeout
	} else {
		m.loadTimeout = cfg.LoadTimeout
	}
	if cfg.ReleaseTimeout <= 0 {
		m.releaseTimeout = defaultReleaseTimeout
	} else {
		m.releaseTimeout = cfg.ReleaseTimeout
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	return m
}

type nopPublisher struct{}

func (nopPublisher) Publish(residency.Event) {}
