package residency

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Zombie killer defaults.
const (
	DefaultZombieInterval = 30 * time.Second
	MinZombieInterval     = 5 * time.Second
)

// ZombieState is the lifecycle state of the kill loop.
type ZombieState string

const (
	ZombieDisabled ZombieState = "disabled"
	ZombieIdle     ZombieState = "idle"
	ZombieKilling  ZombieState = "killing"
)

// Releaser is anything that holds accelerator memory and can let go of all
// of it. Release is best-effort.
type Releaser interface {
	Name() string
	Release(ctx context.Context) error
}

// CacheClearer is implemented by releasers that keep a framework-level
// allocator cache which should be emptied after a kill.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// ZombieConfig configures a ZombieKiller.
type ZombieConfig struct {
	Enabled   bool
	Interval  time.Duration
	Logger    *zerolog.Logger
	Publisher EventPublisher
	// GC overrides the runtime memory hint; used by tests.
	GC func()
}

// ZombieView is the externally visible killer configuration.
type ZombieView struct {
	Enabled         bool        `json:"enabled"`
	IntervalSeconds int         `json:"interval"`
	State           ZombieState `json:"state"`
	KillsTotal      uint64      `json:"kills_total"`
	LastKill        *KillReport `json:"last_kill,omitempty"`
}

// KillReport describes one kill pass.
type KillReport struct {
	At             time.Time         `json:"at"`
	BeforeGhostMB  float64           `json:"before_ghost_mb"`
	AfterGhostMB   float64           `json:"after_ghost_mb"`
	Released       []string          `json:"released"`
	Failed         map[string]string `json:"failed,omitempty"`
	RecordsCleared int               `json:"records_cleared"`
	Cleared        bool              `json:"cleared"`
}

// killTarget is the slice of Tracker the killer depends on.
type killTarget interface {
	BaselineRecorded() bool
	GhostStatus() GhostStatus
	ResetAll(reason string) int
	Refresh() GhostStatus
}

// ZombieKiller periodically checks for ghost memory and, when enabled,
// forces every releaser to drop its models.
type ZombieKiller struct {
	target    killTarget
	releasers []Releaser
	log       zerolog.Logger
	publisher EventPublisher
	gc        func()

	enabled  atomic.Bool
	interval atomic.Int64
	killing  atomic.Bool
	kills    atomic.Uint64
	kick     chan struct{}

	passMu sync.Mutex

	mu   sync.Mutex
	last *KillReport
}

// NewZombieKiller builds a killer over tracker. It does nothing until Run is
// started.
func NewZombieKiller(tracker killTarget, releasers []Releaser, cfg ZombieConfig) *ZombieKiller {
	k := &ZombieKiller{
		target:    tracker,
		releasers: append([]Releaser(nil), releasers...),
		publisher: cfg.Publisher,
		gc:        cfg.GC,
		kick:      make(chan struct{}, 1),
	}
	if cfg.Logger != nil {
		k.log = cfg.Logger.With().Str("component", "zombie_killer").Logger()
	} else {
		k.log = zerolog.Nop()
	}
	if k.publisher == nil {
		k.publisher = noopPublisher{}
	}
	if k.gc == nil {
		k.gc = func() {
			runtime.GC()
			debug.FreeOSMemory()
		}
	}
	k.enabled.Store(cfg.Enabled)
	k.interval.Store(int64(clampZombieInterval(cfg.Interval)))
	return k
}

func clampZombieInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultZombieInterval
	}
	if d < MinZombieInterval {
		return MinZombieInterval
	}
	return d
}

func (k *ZombieKiller) Enabled() bool           { return k.enabled.Load() }
func (k *ZombieKiller) Interval() time.Duration { return time.Duration(k.interval.Load()) }

func (k *ZombieKiller) State() ZombieState {
	switch {
	case k.killing.Load():
		return ZombieKilling
	case k.enabled.Load():
		return ZombieIdle
	default:
		return ZombieDisabled
	}
}

// KillsTotal counts completed kill passes.
func (k *ZombieKiller) KillsTotal() uint64 { return k.kills.Load() }

// SetEnabled toggles the loop. Turning it on triggers an immediate check.
func (k *ZombieKiller) SetEnabled(on bool) {
	was := k.enabled.Swap(on)
	if on && !was {
		select {
		case k.kick <- struct{}{}:
		default:
		}
	}
	k.log.Info().Bool("enabled", on).Msg("zombie killer toggled")
}

// SetInterval changes the check period, raising it to MinZombieInterval when
// lower. It returns the effective value, applied from the next tick.
func (k *ZombieKiller) SetInterval(d time.Duration) time.Duration {
	d = clampZombieInterval(d)
	k.interval.Store(int64(d))
	return d
}

func (k *ZombieKiller) Config() ZombieView {
	v := ZombieView{
		Enabled:         k.Enabled(),
		IntervalSeconds: int(k.Interval() / time.Second),
		State:           k.State(),
		KillsTotal:      k.KillsTotal(),
	}
	k.mu.Lock()
	if k.last != nil {
		r := *k.last
		v.LastKill = &r
	}
	k.mu.Unlock()
	return v
}

// Run loops until ctx is done. Each tick performs at most one kill attempt.
func (k *ZombieKiller) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(k.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-k.kick:
			timer.Stop()
		case <-timer.C:
		}
		k.CheckOnce(ctx)
	}
}

// CheckOnce runs one detection and, if ghost memory is present while the
// killer is enabled, one kill pass. Nothing runs before the baseline is
// recorded. The bool reports whether a kill ran.
func (k *ZombieKiller) CheckOnce(ctx context.Context) (KillReport, bool) {
	if !k.Enabled() || !k.target.BaselineRecorded() {
		return KillReport{}, false
	}
	k.passMu.Lock()
	defer k.passMu.Unlock()

	st := k.target.GhostStatus()
	if !st.Detected {
		return KillReport{}, false
	}
	return k.kill(ctx, st), true
}

func (k *ZombieKiller) kill(ctx context.Context, before GhostStatus) KillReport {
	k.killing.Store(true)
	defer k.killing.Store(false)

	rep := KillReport{At: time.Now(), BeforeGhostMB: before.GhostVRAMMB}
	k.log.Warn().Float64("ghost_mb", before.GhostVRAMMB).Str("severity", string(before.Severity)).Msg("zombie kill starting")
	k.publisher.Publish(Event{Name: EventKillStart, Fields: map[string]any{"ghost_mb": before.GhostVRAMMB}})

	for _, r := range k.releasers {
		if err := safeRelease(ctx, r); err != nil {
			if rep.Failed == nil {
				rep.Failed = make(map[string]string)
			}
			rep.Failed[r.Name()] = err.Error()
			k.log.Error().Err(err).Str("releaser", r.Name()).Msg("release failed")
			continue
		}
		rep.Released = append(rep.Released, r.Name())
	}

	rep.RecordsCleared = k.target.ResetAll("zombie_kill")

	k.gc()
	for _, r := range k.releasers {
		cc, ok := r.(CacheClearer)
		if !ok {
			continue
		}
		if err := cc.ClearCache(ctx); err != nil {
			k.log.Warn().Err(err).Str("releaser", r.Name()).Msg("cache clear failed")
		}
	}

	after := k.target.Refresh()
	rep.AfterGhostMB = after.GhostVRAMMB
	rep.Cleared = !after.Detected

	k.mu.Lock()
	k.last = &rep
	k.mu.Unlock()
	k.kills.Add(1)

	ev := k.log.Info()
	if !rep.Cleared {
		ev = k.log.Warn()
	}
	ev.Float64("before_ghost_mb", rep.BeforeGhostMB).
		Float64("after_ghost_mb", rep.AfterGhostMB).
		Int("records_cleared", rep.RecordsCleared).
		Bool("cleared", rep.Cleared).
		Msg("zombie kill finished")
	k.publisher.Publish(Event{Name: EventKillDone, Fields: map[string]any{
		"before_ghost_mb": rep.BeforeGhostMB,
		"after_ghost_mb":  rep.AfterGhostMB,
		"cleared":         rep.Cleared,
	}})
	return rep
}

// safeRelease converts a panicking releaser into an error so one bad
// collaborator cannot stop the pass.
func safeRelease(ctx context.Context, r Releaser) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("release panicked: %v", p)
		}
	}()
	return r.Release(ctx)
}
