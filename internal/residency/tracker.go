package residency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"residencyd/internal/catalog"
	"residencyd/internal/probe"
)

// Tracker owns the residency table, the baseline and the last
// classification. All exported methods are safe for concurrent use.
type Tracker struct {
	probe     probe.Probe
	host      probe.HostSampler
	catalog   *catalog.Catalog
	th        Thresholds
	log       zerolog.Logger
	publisher EventPublisher
	now       func() time.Time

	settleDelay      time.Duration
	baselineRetryMax time.Duration
	statusMaxAge     time.Duration
	maxTransient     int

	sf singleflight.Group

	mu        sync.RWMutex
	table     *table
	lastKnown map[string]float64

	baselineVRAM float64
	baselineRAM  float64
	baselineSet  bool
	// baselinePending is set when the baseline sample failed transiently;
	// the next good refresh with an empty table arms it.
	baselinePending bool

	lastSample        probe.Sample
	hasGood           bool
	gpuAvailable      bool
	cls               Classification
	refreshedAt       time.Time
	transientFailures int
	resets            uint64
}

// New constructs a Tracker, applying defaults for zero config values.
func New(cfg Config) *Tracker {
	t := &Tracker{
		probe:        cfg.Probe,
		host:         cfg.Host,
		catalog:      cfg.Catalog,
		th:           cfg.Thresholds(),
		publisher:    cfg.Publisher,
		now:          cfg.Clock,
		settleDelay:      cfg.SettleDelay,
		baselineRetryMax: cfg.BaselineRetryMax,
		statusMaxAge:     cfg.StatusMaxAge,
		maxTransient:     cfg.MaxTransientFailures,
		table:            newTable(),
		lastKnown:        make(map[string]float64),
		cls:              Classification{Severity: SeverityNone},
	}
	if t.probe == nil {
		t.probe = unavailableProbe{}
	}
	if t.catalog == nil {
		t.catalog = catalog.Default()
	}
	if cfg.Logger != nil {
		t.log = cfg.Logger.With().Str("component", "residency").Logger()
	} else {
		t.log = zerolog.Nop()
	}
	if t.publisher == nil {
		t.publisher = noopPublisher{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.settleDelay == 0 {
		t.settleDelay = DefaultSettleDelay
	}
	if t.baselineRetryMax == 0 {
		t.baselineRetryMax = DefaultBaselineRetryMax
	}
	if t.statusMaxAge <= 0 {
		t.statusMaxAge = DefaultStatusMaxAge
	}
	if t.maxTransient <= 0 {
		t.maxTransient = DefaultMaxTransientFailures
	}
	return t
}

// Catalog returns the footprint catalog used for detection.
func (t *Tracker) Catalog() *catalog.Catalog { return t.catalog }

// Thresholds returns the active guard bands.
func (t *Tracker) Thresholds() Thresholds { return t.th }

// RecordBaseline waits for the settle delay and then stores the current
// device usage as the baseline. Transient probe failures are retried with
// backoff for up to the configured retry budget. If the budget runs out the
// baseline stays unrecorded and the first good refresh with no resident
// models arms it. An absent accelerator records a zero baseline. Only
// context cancellation is returned. Calling it again re-arms the baseline.
func (t *Tracker) RecordBaseline(ctx context.Context) error {
	if t.settleDelay > 0 {
		timer := time.NewTimer(t.settleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s, err := t.sampleBaseline(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	rss, _ := t.processRSS()

	t.mu.Lock()
	switch {
	case err == nil:
		t.baselineVRAM = s.UsedMB
		t.lastSample = s
		t.hasGood = true
		t.gpuAvailable = true
		t.baselineSet = true
		t.baselinePending = false
	case errors.Is(err, probe.ErrUnavailable):
		t.baselineVRAM = 0
		t.gpuAvailable = false
		t.baselineSet = true
		t.baselinePending = false
	default:
		t.baselineSet = false
		t.baselinePending = true
	}
	t.baselineRAM = rss
	vram := t.baselineVRAM
	t.mu.Unlock()

	switch {
	case err == nil:
		t.log.Info().Float64("baseline_vram_mb", vram).Float64("baseline_ram_mb", rss).Msg("baseline recorded")
		t.publisher.Publish(Event{Name: EventBaselineRecorded, Fields: map[string]any{"baseline_vram_mb": vram}})
	case errors.Is(err, probe.ErrUnavailable):
		t.log.Warn().Err(err).Msg("accelerator unavailable; using zero baseline")
		t.publisher.Publish(Event{Name: EventProbeFailure, Fields: map[string]any{"stage": "baseline", "error": err.Error()}})
	default:
		t.log.Warn().Err(err).Msg("baseline probe kept failing; deferring baseline to the next good refresh")
		t.publisher.Publish(Event{Name: EventProbeFailure, Fields: map[string]any{"stage": "baseline", "error": err.Error()}})
	}
	return nil
}

// sampleBaseline samples the device, retrying transient failures.
func (t *Tracker) sampleBaseline(ctx context.Context) (probe.Sample, error) {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if t.baselineRetryMax > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 100 * time.Millisecond
		eb.MaxInterval = time.Second
		eb.MaxElapsedTime = t.baselineRetryMax
		b = eb
	}
	var s probe.Sample
	op := func() error {
		var err error
		s, err = t.probe.Sample()
		if errors.Is(err, probe.ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.log.Debug().Err(err).Dur("retry_in", wait).Msg("baseline probe failed")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	return s, err
}

// TrackLoad records id as resident and refreshes the classification.
// Loading an id twice keeps the first record.
func (t *Tracker) TrackLoad(id, name string) {
	t.mu.Lock()
	added := t.table.load(id, name, t.now())
	t.mu.Unlock()
	if added {
		t.log.Info().Str("model", id).Msg("model tracked")
		t.publisher.Publish(Event{Name: EventTrackLoad, ModelID: id})
	}
	t.refresh()
}

// TrackUnload removes id. Unknown ids are a no-op apart from the refresh.
func (t *Tracker) TrackUnload(id string) {
	t.mu.Lock()
	removed := t.table.unload(id)
	t.mu.Unlock()
	if removed {
		t.log.Info().Str("model", id).Msg("model untracked")
		t.publisher.Publish(Event{Name: EventTrackUnload, ModelID: id})
	}
	t.refresh()
}

// ResetAll clears every record without touching the last-known history.
// Callers refresh afterwards when they need fresh numbers.
func (t *Tracker) ResetAll(reason string) int {
	t.mu.Lock()
	n := t.table.reset()
	t.resets++
	t.mu.Unlock()
	t.log.Warn().Str("reason", reason).Int("records", n).Msg("residency table reset")
	t.publisher.Publish(Event{Name: EventReset, Fields: map[string]any{"reason": reason, "records": n}})
	return n
}

// ClearHistory forgets every last-known VRAM value.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	t.lastKnown = make(map[string]float64)
	t.mu.Unlock()
}

// Refresh samples the device and recomputes attribution and classification.
// Concurrent callers share one probe call.
func (t *Tracker) Refresh() GhostStatus {
	v, _, _ := t.sf.Do("refresh", func() (any, error) {
		return t.refresh(), nil
	})
	return v.(GhostStatus)
}

// LoadedModels refreshes and returns a copy of the resident records.
func (t *Tracker) LoadedModels() []Record {
	t.Refresh()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table.snapshot()
}

// GhostStatus returns the cached classification when it is younger than
// StatusMaxAge and refreshes otherwise.
func (t *Tracker) GhostStatus() GhostStatus {
	t.mu.RLock()
	fresh := !t.refreshedAt.IsZero() && t.now().Sub(t.refreshedAt) < t.statusMaxAge
	st := t.statusLocked()
	t.mu.RUnlock()
	if fresh {
		return st
	}
	return t.Refresh()
}

// LastKnownVRAM returns the most recent attributed VRAM for id, or 0 if it
// was never attributed.
func (t *Tracker) LastKnownVRAM(id string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastKnown[id]
}

// IsLoaded reports whether id is currently resident. It does not probe.
func (t *Tracker) IsLoaded(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table.has(id)
}

// BaselineRecorded reports whether a baseline sample has been stored.
func (t *Tracker) BaselineRecorded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baselineSet
}

// Snapshot returns the current state without probing the device.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		BaselineVRAMMB:   t.baselineVRAM,
		BaselineRAMMB:    t.baselineRAM,
		BaselineRecorded: t.baselineSet,
		GPUAvailable:     t.gpuAvailable,
		Sample:           t.lastSample,
		Ghost:            t.statusLocked(),
		Models:           t.table.snapshot(),
		RefreshedAt:      t.refreshedAt,
		Resets:           t.resets,
	}
}

// refresh probes without holding the lock, then applies the result.
func (t *Tracker) refresh() GhostStatus {
	s, err := t.probe.Sample()
	rss, rssErr := t.processRSS()
	if rssErr != nil {
		t.log.Debug().Err(rssErr).Msg("process rss unavailable")
	}

	t.mu.Lock()
	events, clamped := t.applyLocked(s, err, rss)
	st := t.statusLocked()
	failures := t.transientFailures
	t.mu.Unlock()

	if err != nil {
		if errors.Is(err, probe.ErrUnavailable) {
			t.log.Debug().Err(err).Msg("accelerator unavailable")
		} else {
			t.log.Warn().Err(err).Int("consecutive", failures).Msg("probe failed; keeping last classification")
		}
	}
	if clamped {
		t.log.Warn().Float64("effective_vram_mb", st.EffectiveVRAMMB).Msg("attributed vram exceeded effective usage; rescaled")
	}
	for _, e := range events {
		if e.Name == EventBaselineRecorded {
			t.log.Info().Interface("baseline_vram_mb", e.Fields["baseline_vram_mb"]).Msg("deferred baseline recorded")
		}
		if e.Name == EventGhostDetected {
			t.log.Error().
				Float64("expected_mb", st.ExpectedVRAMMB).
				Float64("effective_mb", st.EffectiveVRAMMB).
				Float64("ghost_mb", st.GhostVRAMMB).
				Str("severity", string(st.Severity)).
				Msg("ghost memory detected")
		}
		t.publisher.Publish(e)
	}
	return st
}

func (t *Tracker) applyLocked(s probe.Sample, err error, rss float64) ([]Event, bool) {
	prev := t.cls
	var events []Event
	clamped := false

	switch {
	case err == nil:
		t.transientFailures = 0
		t.gpuAvailable = true
		if t.hasGood && !s.TakenAt.IsZero() && s.TakenAt.Before(t.lastSample.TakenAt) {
			// A concurrent refresh already applied a newer sample.
			s = t.lastSample
		}
		t.hasGood = true
		t.lastSample = s
		if t.baselinePending && t.table.len() == 0 {
			t.baselineVRAM = s.UsedMB
			if rss > 0 {
				t.baselineRAM = rss
			}
			t.baselineSet = true
			t.baselinePending = false
			events = append(events, Event{Name: EventBaselineRecorded, Fields: map[string]any{"baseline_vram_mb": s.UsedMB}})
		}
		clamped = t.recomputeLocked(s.UsedMB, rss)
	case errors.Is(err, probe.ErrUnavailable):
		t.degradeLocked()
	default:
		t.transientFailures++
		events = append(events, Event{Name: EventProbeFailure, Fields: map[string]any{"error": err.Error(), "consecutive": t.transientFailures}})
		if !t.hasGood || t.transientFailures >= t.maxTransient {
			t.degradeLocked()
		} else {
			// Reuse the last good sample so table changes still get attributed.
			clamped = t.recomputeLocked(t.lastSample.UsedMB, rss)
		}
	}
	t.refreshedAt = t.now()

	switch {
	case !prev.IsGhost && t.cls.IsGhost:
		events = append(events, Event{Name: EventGhostDetected, Fields: map[string]any{"ghost_mb": t.cls.GhostMB, "severity": string(t.cls.Severity)}})
	case prev.IsGhost && !t.cls.IsGhost:
		events = append(events, Event{Name: EventGhostCleared})
	}
	return events, clamped
}

func (t *Tracker) recomputeLocked(usedMB, rss float64) bool {
	ids := t.table.ids()
	t.cls = Detect(DetectInput{
		Available:  true,
		UsedMB:     usedMB,
		BaselineMB: t.baselineVRAM,
		IDs:        ids,
		Catalog:    t.catalog,
	}, t.th)
	effRAM := 0.0
	if rss > 0 {
		effRAM = rss - t.baselineRAM
	}
	attrs, clamped := Attribute(ids, t.cls.EffectiveVRAMMB, effRAM, t.cls, t.catalog)
	for id, a := range attrs {
		t.table.setAttribution(id, a)
		t.lastKnown[id] = a.VRAMMB
	}
	return clamped
}

// degradeLocked reports the unavailable state. Last-known history is left
// alone: nothing was measured.
func (t *Tracker) degradeLocked() {
	t.gpuAvailable = false
	t.cls = Detect(DetectInput{Available: false}, t.th)
	t.table.zeroAttribution()
}

func (t *Tracker) statusLocked() GhostStatus {
	return GhostStatus{
		Detected:        t.cls.IsGhost,
		GhostVRAMMB:     t.cls.GhostMB,
		Severity:        t.cls.Severity,
		EffectiveVRAMMB: t.cls.EffectiveVRAMMB,
		ExpectedVRAMMB:  t.cls.ExpectedTotalMB,
		GPUAvailable:    t.gpuAvailable,
		CheckedAt:       t.refreshedAt,
	}
}

func (t *Tracker) processRSS() (float64, error) {
	if t.host == nil {
		return 0, nil
	}
	return t.host.ProcessRSSMB()
}
