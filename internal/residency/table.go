package residency

import (
	"sort"
	"time"
)

// table is the set of resident models keyed by id. It is not synchronized;
// the Tracker guards every access with its own lock.
type table struct {
	records map[string]*Record
}

func newTable() *table { return &table{records: make(map[string]*Record)} }

// load inserts a zero-attributed record. It is a no-op when id is present,
// so LoadedAt keeps the first insertion time.
func (t *table) load(id, name string, now time.Time) bool {
	if _, ok := t.records[id]; ok {
		return false
	}
	if name == "" {
		name = id
	}
	t.records[id] = &Record{ID: id, DisplayName: name, LoadedAt: now}
	return true
}

func (t *table) unload(id string) bool {
	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	return true
}

// reset drops every record and returns how many were removed.
func (t *table) reset() int {
	n := len(t.records)
	t.records = make(map[string]*Record)
	return n
}

func (t *table) has(id string) bool {
	_, ok := t.records[id]
	return ok
}

func (t *table) len() int { return len(t.records) }

// ids returns the resident ids ordered by load time, then id.
func (t *table) ids() []string {
	recs := t.ordered()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func (t *table) setAttribution(id string, a Attribution) {
	if r, ok := t.records[id]; ok {
		r.AttributedVRAMMB = a.VRAMMB
		r.AttributedRAMMB = a.RAMMB
	}
}

func (t *table) zeroAttribution() {
	for _, r := range t.records {
		r.AttributedVRAMMB = 0
		r.AttributedRAMMB = 0
	}
}

// snapshot returns copies so callers never alias table state.
func (t *table) snapshot() []Record {
	recs := t.ordered()
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out
}

func (t *table) ordered() []*Record {
	recs := make([]*Record, 0, len(t.records))
	for _, r := range t.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].LoadedAt.Equal(recs[j].LoadedAt) {
			return recs[i].LoadedAt.Before(recs[j].LoadedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs
}
