package residency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTableLoadIsIdempotent(t *testing.T) {
	tb := newTable()
	t0 := time.Unix(100, 0)
	assert.True(t, tb.load("m1", "M1", t0))
	assert.False(t, tb.load("m1", "Other", t0.Add(time.Minute)))

	recs := tb.snapshot()
	assert.Len(t, recs, 1)
	assert.Equal(t, "M1", recs[0].DisplayName)
	assert.Equal(t, t0, recs[0].LoadedAt)
}

func TestTableNameDefaultsToID(t *testing.T) {
	tb := newTable()
	tb.load("m1", "", time.Now())
	assert.Equal(t, "m1", tb.snapshot()[0].DisplayName)
}

func TestTableUnloadAndReset(t *testing.T) {
	tb := newTable()
	now := time.Now()
	tb.load("a", "A", now)
	tb.load("b", "B", now.Add(time.Second))
	assert.False(t, tb.unload("missing"))
	assert.True(t, tb.unload("a"))
	assert.Equal(t, []string{"b"}, tb.ids())
	assert.Equal(t, 1, tb.reset())
	assert.Equal(t, 0, tb.len())
}

func TestTableSnapshotIsCopy(t *testing.T) {
	tb := newTable()
	tb.load("a", "A", time.Now())
	snap := tb.snapshot()
	snap[0].AttributedVRAMMB = 99
	assert.Equal(t, 0.0, tb.snapshot()[0].AttributedVRAMMB)
}

func TestTableOrderedByLoadTime(t *testing.T) {
	tb := newTable()
	now := time.Now()
	tb.load("z", "Z", now)
	tb.load("a", "A", now.Add(time.Second))
	assert.Equal(t, []string{"z", "a"}, tb.ids())
}
