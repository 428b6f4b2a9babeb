package residency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"residencyd/internal/catalog"
	"residencyd/internal/probe"
)

// newTestTracker returns a tracker over a fake device with a recorded
// baseline of baselineMB.
func newTestTracker(t *testing.T, baselineMB float64, cat *catalog.Catalog) (*Tracker, *probe.Fake, *MemoryPublisher) {
	t.Helper()
	fake := probe.NewFake(24000, baselineMB)
	pub := NewMemoryPublisher()
	tr := New(Config{
		Probe:       fake,
		Catalog:     cat,
		SettleDelay: -1,
		Publisher:   pub,
	})
	require.NoError(t, tr.RecordBaseline(context.Background()))
	return tr, fake, pub
}

type fakeReleaser struct {
	name    string
	err     error
	panics  bool
	onCall  func()
	calls   int
	cleared int
}

func (r *fakeReleaser) Name() string { return r.name }

func (r *fakeReleaser) Release(context.Context) error {
	r.calls++
	if r.panics {
		panic("boom")
	}
	if r.onCall != nil {
		r.onCall()
	}
	return r.err
}

func (r *fakeReleaser) ClearCache(context.Context) error {
	r.cleared++
	return nil
}

// stepClock is a manually advanced clock.
type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time           { return c.now }
func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// flakyProbe fails its first failures samples with a transient error.
type flakyProbe struct {
	mu       sync.Mutex
	inner    *probe.Fake
	failures int
	calls    int
}

func (p *flakyProbe) Sample() (probe.Sample, error) {
	p.mu.Lock()
	p.calls++
	fail := p.calls <= p.failures
	p.mu.Unlock()
	if fail {
		return probe.Sample{}, errors.New("driver busy")
	}
	return p.inner.Sample()
}

func (p *flakyProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// scriptedProbe replays samples in order and repeats the last one.
type scriptedProbe struct {
	mu      sync.Mutex
	samples []probe.Sample
	next    int
}

func (p *scriptedProbe) Sample() (probe.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.next
	if i >= len(p.samples) {
		i = len(p.samples) - 1
	} else {
		p.next++
	}
	return p.samples[i], nil
}
