// Package catalog holds the static model metadata: families, descriptors and
// the expected VRAM footprint lookup used by ghost detection.
package catalog

// DefaultFootprintMB is charged for any model id with no catalog entry.
const DefaultFootprintMB = 2000.0

// Catalog maps model ids to expected VRAM cost in MB. It is immutable once
// built and safe for concurrent use.
type Catalog struct {
	defaultMB  float64
	footprints map[string]float64
}

// New copies footprints. A non-positive defaultMB selects DefaultFootprintMB.
func New(defaultMB float64, footprints map[string]float64) *Catalog {
	if defaultMB <= 0 {
		defaultMB = DefaultFootprintMB
	}
	c := &Catalog{defaultMB: defaultMB, footprints: make(map[string]float64, len(footprints))}
	for id, mb := range footprints {
		if mb > 0 {
			c.footprints[id] = mb
		}
	}
	return c
}

// FromDescriptors builds a catalog from descriptors that declare a footprint.
func FromDescriptors(defaultMB float64, ds []Descriptor) *Catalog {
	m := make(map[string]float64, len(ds))
	for _, d := range ds {
		if d.ExpectedVRAMMB > 0 {
			m[d.ID] = d.ExpectedVRAMMB
		}
	}
	return New(defaultMB, m)
}

// Default is the builtin line-up with the stock default footprint.
func Default() *Catalog { return FromDescriptors(DefaultFootprintMB, Builtin()) }

// Expected returns the footprint for id, or the default for unknown ids.
func (c *Catalog) Expected(id string) float64 {
	if c == nil {
		return DefaultFootprintMB
	}
	if mb, ok := c.footprints[id]; ok {
		return mb
	}
	return c.defaultMB
}

// Has reports whether id has an explicit entry.
func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.footprints[id]
	return ok
}

func (c *Catalog) DefaultMB() float64 {
	if c == nil {
		return DefaultFootprintMB
	}
	return c.defaultMB
}

// WithOverrides returns a new catalog where overrides replace existing
// entries. Non-positive override values are ignored.
func (c *Catalog) WithOverrides(overrides map[string]float64) *Catalog {
	merged := c.Entries()
	for id, mb := range overrides {
		if mb > 0 {
			merged[id] = mb
		}
	}
	return New(c.DefaultMB(), merged)
}

// WithDefault returns a copy using a different default footprint.
func (c *Catalog) WithDefault(defaultMB float64) *Catalog {
	return New(defaultMB, c.Entries())
}

// Entries returns a copy of the explicit entries.
func (c *Catalog) Entries() map[string]float64 {
	out := make(map[string]float64)
	if c == nil {
		return out
	}
	for id, mb := range c.footprints {
		out[id] = mb
	}
	return out
}
