package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"residencyd/internal/catalog"
	"residencyd/internal/httpapi"
	"residencyd/internal/loader"
	"residencyd/internal/manager"
	"residencyd/internal/metrics"
	"residencyd/internal/probe"
	"residencyd/internal/residency"
)

const (
	totalMB    = 24000.0
	baselineMB = 1000.0
)

// worker is an in-process backend that moves the fake device's used VRAM
// as models come and go. With leak set, unloads keep their memory until
// the next release.
type worker struct {
	mu     sync.Mutex
	gpu    *probe.Fake
	cat    *catalog.Catalog
	loaded map[string]float64
	leaked float64
	leak   bool
}

func (w *worker) setLeak(on bool) {
	w.mu.Lock()
	w.leak = on
	w.mu.Unlock()
}

// syncLocked publishes the current footprint to the fake device.
func (w *worker) syncLocked() {
	used := baselineMB + w.leaked
	for _, mb := range w.loaded {
		used += mb
	}
	w.gpu.SetUsed(used)
}

func (w *worker) handler() http.Handler {
	mux := http.NewServeMux()
	model := func(r *http.Request) string {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		return req.Model
	}
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) { rw.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v1/load", func(rw http.ResponseWriter, r *http.Request) {
		id := model(r)
		w.mu.Lock()
		w.loaded[id] = w.cat.Expected(id)
		w.syncLocked()
		w.mu.Unlock()
		rw.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/unload", func(rw http.ResponseWriter, r *http.Request) {
		id := model(r)
		w.mu.Lock()
		if w.leak {
			w.leaked += w.loaded[id]
		}
		delete(w.loaded, id)
		w.syncLocked()
		w.mu.Unlock()
		rw.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/release", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		w.loaded = map[string]float64{}
		w.leaked = 0
		w.syncLocked()
		w.mu.Unlock()
		rw.WriteHeader(http.StatusOK)
	})
	return mux
}

type stack struct {
	srv     *httptest.Server
	gpu     *probe.Fake
	worker  *worker
	tracker *residency.Tracker
	mgr     *manager.Manager
	killer  *residency.ZombieKiller
}

// newStack wires the full service in-process: fake device, HTTP diffusion
// backend, tracker, manager, zombie killer and the HTTP API.
func newStack(t *testing.T) *stack {
	t.Helper()
	cat := catalog.Default()
	gpu := probe.NewFake(totalMB, baselineMB)
	wk := &worker{gpu: gpu, cat: cat, loaded: map[string]float64{}}
	backend := httptest.NewServer(wk.handler())
	t.Cleanup(backend.Close)

	tracker := residency.New(residency.Config{Probe: gpu, Host: probe.FixedHost(0), Catalog: cat, SettleDelay: -1})
	if err := tracker.RecordBaseline(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	diffusion := loader.NewHTTP(loader.HTTPOptions{Name: "diffusion", Family: catalog.FamilyDiffusion, BaseURL: backend.URL})
	if err := diffusion.WaitReady(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("backend not ready: %v", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry: catalog.Builtin(),
		Loaders:  loader.NewSet(diffusion),
		Tracker:  tracker,
	})
	killer := residency.NewZombieKiller(tracker, mgr.Releasers(), residency.ZombieConfig{GC: func() {}})
	mgr.SetZombieKiller(killer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = killer.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(tracker, killer))
	mux := httpapi.NewMux(mgr, httpapi.Deps{
		Residency: tracker,
		Zombie:    killer,
		Devices:   gpu,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, gpu: gpu, worker: wk, tracker: tracker, mgr: mgr, killer: killer}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func decodeBody[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("json: %v body=%s", err, string(b))
	}
	return v
}
