package manager

import (
	"context"
	"testing"

	"residencyd/internal/catalog"
	"residencyd/internal/loader"
	"residencyd/internal/probe"
	"residencyd/internal/residency"
)

type fixture struct {
	m    *Manager
	gpu  *probe.Fake
	capt *loader.Fake
	diff *loader.Fake
	pub  *residency.MemoryPublisher
}

// newFixture wires a manager over fake loaders and a fake device with a
// 1000 MB baseline. Loading a model raises device usage by its footprint.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gpu:  probe.NewFake(24000, 1000),
		capt: loader.NewFake("captioner", catalog.FamilyCaptioner),
		diff: loader.NewFake("diffusion", catalog.FamilyDiffusion),
		pub:  residency.NewMemoryPublisher(),
	}
	reg := []catalog.Descriptor{
		{ID: "moondream-2", Name: "Moondream 2", Family: catalog.FamilyCaptioner, ExpectedVRAMMB: 2600},
		{ID: "juggernaut-xl", Name: "Juggernaut XL", Family: catalog.FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl", Family: catalog.FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "wd14-vit-v2", Family: catalog.FamilyTagger, ExpectedVRAMMB: 450},
	}
	cat := catalog.FromDescriptors(2000, reg)
	used := 1000.0
	usage := map[string]float64{}
	f.capt.OnLoad = func(id string) { usage[id] = cat.Expected(id); f.gpu.SetUsed(used + sum(usage)) }
	f.diff.OnLoad = f.capt.OnLoad
	f.capt.OnUnload = func(id string) { delete(usage, id); f.gpu.SetUsed(used + sum(usage)) }
	f.diff.OnUnload = f.capt.OnUnload

	tr := residency.New(residency.Config{Probe: f.gpu, Catalog: cat, SettleDelay: -1})
	if err := tr.RecordBaseline(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	f.m = NewWithConfig(ManagerConfig{
		Registry:  reg,
		Loaders:   loader.NewSet(f.capt, f.diff),
		Tracker:   tr,
		Publisher: f.pub,
	})
	return f
}

func sum(m map[string]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}
