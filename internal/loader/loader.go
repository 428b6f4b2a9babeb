// Package loader defines the model loader collaborators: the components
// that actually put weights on the accelerator and take them off again.
package loader

import (
	"context"
	"errors"
	"sort"

	"residencyd/internal/catalog"
)

// ErrNoLoader is returned when no loader serves a model family.
var ErrNoLoader = errors.New("no loader for family")

// Loader loads and unloads models of one family.
// Unload and Release are best-effort: an error means the backend may still
// hold memory, never that local state is inconsistent.
type Loader interface {
	Name() string
	Family() catalog.Family
	Load(ctx context.Context, id string) error
	Unload(ctx context.Context, id string) error
	// Release drops every model the loader holds.
	Release(ctx context.Context) error
}

// Set maps each family to its loader.
type Set struct {
	byFamily map[catalog.Family]Loader
}

// NewSet indexes loaders by family. A later loader for the same family
// replaces an earlier one.
func NewSet(loaders ...Loader) *Set {
	s := &Set{byFamily: make(map[catalog.Family]Loader, len(loaders))}
	for _, l := range loaders {
		if l != nil {
			s.byFamily[l.Family()] = l
		}
	}
	return s
}

// For returns the loader serving f.
func (s *Set) For(f catalog.Family) (Loader, error) {
	if s != nil {
		if l, ok := s.byFamily[f]; ok {
			return l, nil
		}
	}
	return nil, ErrNoLoader
}

// All returns the loaders ordered by family.
func (s *Set) All() []Loader {
	if s == nil {
		return nil
	}
	out := make([]Loader, 0, len(s.byFamily))
	for _, l := range s.byFamily {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family() < out[j].Family() })
	return out
}

// Len reports how many families are served.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byFamily)
}
