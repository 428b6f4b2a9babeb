package loader

import (
	"context"
	"sync"

	"residencyd/internal/catalog"
)

// Fake is an in-memory loader for tests. It records calls and can be told
// to fail loads.
type Fake struct {
	name   string
	family catalog.Family

	mu       sync.Mutex
	loaded   map[string]bool
	loadErr  error
	calls    []string
	OnLoad   func(id string)
	OnUnload func(id string)
}

func NewFake(name string, family catalog.Family) *Fake {
	return &Fake{name: name, family: family, loaded: make(map[string]bool)}
}

func (f *Fake) Name() string           { return f.name }
func (f *Fake) Family() catalog.Family { return f.family }

// FailLoads makes subsequent Load calls return err (nil clears it).
func (f *Fake) FailLoads(err error) {
	f.mu.Lock()
	f.loadErr = err
	f.mu.Unlock()
}

func (f *Fake) Load(_ context.Context, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, "load:"+id)
	err := f.loadErr
	if err == nil {
		f.loaded[id] = true
	}
	hook := f.OnLoad
	f.mu.Unlock()
	if err == nil && hook != nil {
		hook(id)
	}
	return err
}

func (f *Fake) Unload(_ context.Context, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, "unload:"+id)
	delete(f.loaded, id)
	hook := f.OnUnload
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *Fake) Release(context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, "release")
	f.loaded = make(map[string]bool)
	f.mu.Unlock()
	return nil
}

// Calls returns the recorded call log, e.g. "load:m1", "release".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Loaded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded[id]
}

var _ Loader = (*Fake)(nil)
