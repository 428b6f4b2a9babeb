package residency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residencyd/internal/catalog"
	"residencyd/internal/probe"
)

func TestBaselineLoadNormal(t *testing.T) {
	tr, fake, pub := newTestTracker(t, 2000, catalog.Default())
	assert.Equal(t, 2000.0, tr.Snapshot().BaselineVRAMMB)

	fake.SetUsed(8200)
	tr.TrackLoad("juggernaut-xl", "Juggernaut")

	st := tr.GhostStatus()
	assert.False(t, st.Detected)
	assert.Equal(t, 6200.0, st.EffectiveVRAMMB)
	assert.Equal(t, 6000.0, st.ExpectedVRAMMB)

	recs := tr.LoadedModels()
	require.Len(t, recs, 1)
	assert.Equal(t, 6200.0, recs[0].AttributedVRAMMB)
	assert.Equal(t, "Juggernaut", recs[0].DisplayName)
	assert.Contains(t, pub.Names(), EventTrackLoad)
}

func TestUnknownModelHighSeverityGhost(t *testing.T) {
	tr, fake, pub := newTestTracker(t, 2000, catalog.Default())
	fake.SetUsed(9000)
	tr.TrackLoad("unknown-model", "X")

	st := tr.GhostStatus()
	assert.True(t, st.Detected)
	assert.Equal(t, SeverityHigh, st.Severity)
	assert.Equal(t, 5000.0, st.GhostVRAMMB)
	assert.Contains(t, pub.Names(), EventGhostDetected)

	recs := tr.LoadedModels()
	require.Len(t, recs, 1)
	assert.Equal(t, 2000.0, recs[0].AttributedVRAMMB)
}

func TestTwoModelsEvenSplit(t *testing.T) {
	cat := catalog.New(2000, map[string]float64{"sdxl": 6000, "cap": 2500})
	tr, fake, _ := newTestTracker(t, 1000, cat)
	tr.TrackLoad("sdxl", "SDXL")
	fake.SetUsed(9700)
	tr.TrackLoad("cap", "Captioner")

	st := tr.GhostStatus()
	assert.False(t, st.Detected)
	for _, r := range tr.LoadedModels() {
		assert.InDelta(t, 4350, r.AttributedVRAMMB, 1e-9, r.ID)
	}
}

func TestLoadTwiceKeepsFirstTimestamp(t *testing.T) {
	clk := &stepClock{now: time.Unix(1000, 0)}
	tr := New(Config{Probe: probe.NewFake(8000, 0), SettleDelay: -1, Clock: clk.Now})
	tr.TrackLoad("m1", "M1")
	clk.Advance(time.Minute)
	tr.TrackLoad("m1", "M1")

	recs := tr.LoadedModels()
	require.Len(t, recs, 1)
	assert.Equal(t, time.Unix(1000, 0), recs[0].LoadedAt)
}

func TestUnloadPreservesLastKnown(t *testing.T) {
	tr, fake, pub := newTestTracker(t, 500, catalog.Default())
	fake.SetUsed(2100)
	tr.TrackLoad("m1", "M1")
	tr.TrackUnload("m1")

	for _, r := range tr.LoadedModels() {
		assert.NotEqual(t, "m1", r.ID)
	}
	assert.Equal(t, 1600.0, tr.LastKnownVRAM("m1"))
	assert.Equal(t, 0.0, tr.LastKnownVRAM("never-loaded"))
	assert.Contains(t, pub.Names(), EventTrackUnload)

	tr.ClearHistory()
	assert.Equal(t, 0.0, tr.LastKnownVRAM("m1"))
}

func TestResetAllKeepsHistory(t *testing.T) {
	tr, fake, pub := newTestTracker(t, 0, catalog.Default())
	fake.SetUsed(3000)
	tr.TrackLoad("a", "A")
	tr.TrackLoad("b", "B")

	assert.Equal(t, 2, tr.ResetAll("test"))
	assert.Empty(t, tr.LoadedModels())
	assert.Equal(t, 1500.0, tr.LastKnownVRAM("a"))
	assert.Equal(t, uint64(1), tr.Snapshot().Resets)
	assert.Contains(t, pub.Names(), EventReset)
}

func TestAttributionNeverNegative(t *testing.T) {
	tr, fake, _ := newTestTracker(t, 4000, catalog.Default())
	ops := []struct {
		used   float64
		load   string
		unload string
	}{
		{used: 3000, load: "a"},
		{used: 12000, load: "b"},
		{used: 100, unload: "a"},
		{used: 20000, load: "c"},
		{used: 0, load: "d"},
		{used: 9000, unload: "c"},
	}
	for _, op := range ops {
		fake.SetUsed(op.used)
		if op.load != "" {
			tr.TrackLoad(op.load, op.load)
		}
		if op.unload != "" {
			tr.TrackUnload(op.unload)
		}
		st := tr.GhostStatus()
		assert.GreaterOrEqual(t, st.GhostVRAMMB, 0.0)
		for _, r := range tr.LoadedModels() {
			assert.GreaterOrEqual(t, r.AttributedVRAMMB, 0.0)
			assert.GreaterOrEqual(t, r.AttributedRAMMB, 0.0)
		}
	}
}

func TestThresholdBoundaryThroughTracker(t *testing.T) {
	cat := catalog.New(1000, nil)
	tr, fake, _ := newTestTracker(t, 0, cat)
	fake.SetUsed(2500)
	tr.TrackLoad("m", "M")
	assert.False(t, tr.Refresh().Detected)

	fake.SetUsed(2500.1)
	assert.True(t, tr.Refresh().Detected)
}

func TestProbeUnavailableFailsOpen(t *testing.T) {
	fake := probe.NewFake(8000, 1000)
	fake.SetErr(probe.ErrUnavailable)
	tr := New(Config{Probe: fake, SettleDelay: -1})
	require.NoError(t, tr.RecordBaseline(context.Background()))
	tr.TrackLoad("m", "M")

	st := tr.GhostStatus()
	assert.False(t, st.Detected)
	assert.False(t, st.GPUAvailable)
	recs := tr.LoadedModels()
	require.Len(t, recs, 1)
	assert.Equal(t, 0.0, recs[0].AttributedVRAMMB)
	assert.Equal(t, 0.0, tr.Snapshot().BaselineVRAMMB)
}

func TestNilProbeIsUnavailable(t *testing.T) {
	tr := New(Config{SettleDelay: -1})
	st := tr.Refresh()
	assert.False(t, st.GPUAvailable)
	assert.False(t, st.Detected)
}

func TestTransientFailureWithoutGoodSampleIsNormal(t *testing.T) {
	fake := probe.NewFake(8000, 0)
	fake.SetErr(errors.New("driver busy"))
	pub := NewMemoryPublisher()
	tr := New(Config{Probe: fake, SettleDelay: -1, Publisher: pub})
	tr.TrackLoad("m", "M")

	st := tr.GhostStatus()
	assert.False(t, st.Detected)
	assert.Contains(t, pub.Names(), EventProbeFailure)
}

func TestTransientFailureKeepsLastClassification(t *testing.T) {
	tr, fake, _ := newTestTracker(t, 2000, catalog.Default())
	fake.SetUsed(9000)
	tr.TrackLoad("unknown-model", "X")
	require.True(t, tr.Refresh().Detected)

	fake.SetErr(errors.New("driver busy"))
	st := tr.Refresh()
	assert.True(t, st.Detected)
	assert.True(t, st.GPUAvailable)
	assert.Equal(t, 5000.0, st.GhostVRAMMB)

	tr.Refresh()
	st = tr.Refresh()
	assert.False(t, st.Detected, "degrades after repeated failures")
	assert.False(t, st.GPUAvailable)

	fake.SetErr(nil)
	st = tr.Refresh()
	assert.True(t, st.GPUAvailable)
	assert.True(t, st.Detected)
}

func TestGhostStatusUsesCacheWhileFresh(t *testing.T) {
	clk := &stepClock{now: time.Unix(0, 0)}
	fake := probe.NewFake(8000, 0)
	tr := New(Config{Probe: fake, SettleDelay: -1, Clock: clk.Now})
	tr.Refresh()
	calls := fake.Calls()

	tr.GhostStatus()
	assert.Equal(t, calls, fake.Calls())

	clk.Advance(DefaultStatusMaxAge)
	tr.GhostStatus()
	assert.Equal(t, calls+1, fake.Calls())
}

func TestGhostClearedEvent(t *testing.T) {
	tr, fake, pub := newTestTracker(t, 0, catalog.Default())
	fake.SetUsed(9000)
	tr.TrackLoad("x", "X")
	fake.SetUsed(2000)
	tr.Refresh()
	assert.Contains(t, pub.Names(), EventGhostCleared)
}

func TestRecordBaselineHonorsContext(t *testing.T) {
	tr := New(Config{Probe: probe.NewFake(8000, 0), SettleDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.RecordBaseline(ctx), context.Canceled)
	assert.False(t, tr.Snapshot().BaselineRecorded)
}

func TestRAMSplitEvenly(t *testing.T) {
	host := probe.FixedHost(1000)
	fake := probe.NewFake(8000, 0)
	tr := New(Config{Probe: fake, Host: &host, SettleDelay: -1})
	require.NoError(t, tr.RecordBaseline(context.Background()))

	host = probe.FixedHost(1600)
	tr.TrackLoad("a", "A")
	tr.TrackLoad("b", "B")
	for _, r := range tr.LoadedModels() {
		assert.InDelta(t, 300, r.AttributedRAMMB, 1e-9)
	}
}

func TestConcurrentTrackingIsSafe(t *testing.T) {
	tr, fake, _ := newTestTracker(t, 1000, catalog.Default())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for j := 0; j < 50; j++ {
				fake.SetUsed(float64(1000 + j*100))
				tr.TrackLoad(id, id)
				tr.GhostStatus()
				tr.Snapshot()
				tr.TrackUnload(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Empty(t, tr.LoadedModels())
}

func TestPollStopsOnCancel(t *testing.T) {
	tr := New(Config{Probe: probe.NewFake(8000, 0), SettleDelay: -1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Poll(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestBaselineRetriesTransientFailure(t *testing.T) {
	p := &flakyProbe{inner: probe.NewFake(24000, 2000), failures: 2}
	tr := New(Config{Probe: p, SettleDelay: -1, BaselineRetryMax: 5 * time.Second})
	require.NoError(t, tr.RecordBaseline(context.Background()))

	snap := tr.Snapshot()
	assert.True(t, snap.BaselineRecorded)
	assert.True(t, snap.GPUAvailable)
	assert.Equal(t, 2000.0, snap.BaselineVRAMMB)
	assert.Equal(t, 3, p.Calls())
}

func TestBaselineDeferredUntilGoodRefresh(t *testing.T) {
	fake := probe.NewFake(24000, 2000)
	fake.SetErr(errors.New("driver busy"))
	pub := NewMemoryPublisher()
	tr := New(Config{Probe: fake, Catalog: catalog.Default(), SettleDelay: -1, BaselineRetryMax: -1, Publisher: pub})
	require.NoError(t, tr.RecordBaseline(context.Background()))
	assert.False(t, tr.Snapshot().BaselineRecorded, "transient failure must not record a zero baseline")
	assert.Contains(t, pub.Names(), EventProbeFailure)

	fake.SetErr(nil)
	st := tr.Refresh()
	assert.False(t, st.Detected)
	assert.Equal(t, 0.0, st.GhostVRAMMB)

	snap := tr.Snapshot()
	assert.True(t, snap.BaselineRecorded)
	assert.Equal(t, 2000.0, snap.BaselineVRAMMB)
	assert.Equal(t, 1, pub.Count(EventBaselineRecorded))

	fake.SetUsed(8200)
	tr.TrackLoad("juggernaut-xl", "Juggernaut")
	recs := tr.Snapshot().Models
	require.Len(t, recs, 1)
	assert.Equal(t, 6200.0, recs[0].AttributedVRAMMB)
	assert.Equal(t, 1, pub.Count(EventBaselineRecorded))
}

func TestDeferredBaselineNotArmedWithResidentModels(t *testing.T) {
	fake := probe.NewFake(24000, 2000)
	fake.SetErr(errors.New("driver busy"))
	tr := New(Config{Probe: fake, Catalog: catalog.Default(), SettleDelay: -1, BaselineRetryMax: -1})
	require.NoError(t, tr.RecordBaseline(context.Background()))

	fake.SetErr(nil)
	fake.SetUsed(8200)
	tr.TrackLoad("juggernaut-xl", "Juggernaut")
	assert.False(t, tr.Snapshot().BaselineRecorded)

	tr.TrackUnload("juggernaut-xl")
	fake.SetUsed(2000)
	tr.Refresh()
	snap := tr.Snapshot()
	assert.True(t, snap.BaselineRecorded)
	assert.Equal(t, 2000.0, snap.BaselineVRAMMB)
}

func TestStaleSampleDoesNotOverwriteNewer(t *testing.T) {
	base := time.Unix(1000, 0)
	p := &scriptedProbe{samples: []probe.Sample{
		{TotalMB: 24000, UsedMB: 2000, TakenAt: base},
		{TotalMB: 24000, UsedMB: 8200, TakenAt: base.Add(2 * time.Second)},
		{TotalMB: 24000, UsedMB: 2000, TakenAt: base.Add(time.Second)},
	}}
	tr := New(Config{Probe: p, Catalog: catalog.Default(), SettleDelay: -1})
	require.NoError(t, tr.RecordBaseline(context.Background()))
	tr.TrackLoad("juggernaut-xl", "Juggernaut")

	st := tr.Refresh()
	assert.Equal(t, 6200.0, st.EffectiveVRAMMB)

	snap := tr.Snapshot()
	assert.Equal(t, 8200.0, snap.Sample.UsedMB)
	assert.Equal(t, base.Add(2*time.Second), snap.Sample.TakenAt)
	require.Len(t, snap.Models, 1)
	assert.Equal(t, 6200.0, snap.Models[0].AttributedVRAMMB)
}
