package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"residencyd/internal/catalog"
	"residencyd/internal/config"
	"residencyd/internal/httpapi"
	"residencyd/internal/loader"
	"residencyd/internal/manager"
	"residencyd/internal/metrics"
	"residencyd/internal/probe"
	"residencyd/internal/registry"
	"residencyd/internal/residency"
	"residencyd/pkg/types"
)

const (
	shutdownTimeout = 5 * time.Second
	backendWaitMax  = 30 * time.Second
)

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	descs := catalog.Builtin()
	if cfg.RegistryFile != "" {
		extra, err := registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			return err
		}
		descs = registry.Merge(descs, extra)
	}
	cat := cfg.Catalog(descs)

	gpu := probe.NewNVML(cfg.DeviceIndex, &log)
	if err := gpu.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("accelerator unavailable; ghost detection reports normal")
	}
	defer func() {
		if err := gpu.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("nvml shutdown")
		}
	}()

	trCfg := residency.Config{
		Probe:            gpu,
		Catalog:          cat,
		GhostThresholdMB: cfg.GhostThresholdMB,
		HighSeverityMB:   cfg.HighSeverityMB,
		SettleDelay:      time.Duration(cfg.SettleDelayMS) * time.Millisecond,
		BaselineRetryMax: residency.DefaultBaselineRetryMax,
		Logger:           &log,
	}
	deps := httpapi.Deps{Devices: gpu}
	if host, err := probe.NewHost(); err != nil {
		log.Warn().Err(err).Msg("host sampling unavailable; ram attribution disabled")
	} else {
		trCfg.Host = host
		deps.Host = host
	}
	tracker := residency.New(trCfg)

	loaders, err := buildLoaders(cfg)
	if err != nil {
		return err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:    descs,
		Loaders:     loaders,
		Tracker:     tracker,
		LoadTimeout: time.Duration(cfg.BackendTimeoutSeconds) * time.Second,
		Logger:      &log,
	})
	killer := residency.NewZombieKiller(tracker, mgr.Releasers(), residency.ZombieConfig{
		Enabled:  cfg.ZombieKillerEnabled,
		Interval: time.Duration(cfg.ZombieKillerIntervalSeconds) * time.Second,
		Logger:   &log,
	})
	mgr.SetZombieKiller(killer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(tracker, killer),
	)
	if err := httpapi.RegisterHTTPMetrics(reg); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	deps.Residency = tracker
	deps.Zombie = killer
	deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Int("models", len(descs)).Int("backends", loaders.Len()).Msg("residencyd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown")
		}
		return nil
	})
	// Switches and zombie kills are refused until the baseline is in.
	g.Go(func() error {
		if err := tracker.RecordBaseline(gctx); err != nil {
			return nil
		}
		return tracker.Poll(gctx, time.Duration(cfg.PollIntervalSeconds)*time.Second)
	})
	g.Go(func() error { return killer.Run(gctx) })
	for _, l := range loaders.All() {
		hl, ok := l.(*loader.HTTPLoader)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := hl.WaitReady(gctx, backendWaitMax); err != nil && gctx.Err() == nil {
				log.Warn().Err(err).Str("backend", hl.Name()).Str("url", hl.BaseURL()).Msg("backend not ready")
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info().Msg("residencyd stopped")
	return err
}

// buildLoaders creates one HTTP loader per configured family.
func buildLoaders(cfg config.Config) (*loader.Set, error) {
	fams := make([]string, 0, len(cfg.Backends))
	for fam := range cfg.Backends {
		fams = append(fams, fam)
	}
	sort.Strings(fams)

	ls := make([]loader.Loader, 0, len(fams))
	for _, name := range fams {
		fam, err := catalog.ParseFamily(name)
		if err != nil {
			return nil, fmt.Errorf("backends: %w", err)
		}
		ls = append(ls, loader.NewHTTP(loader.HTTPOptions{
			Name:           fam.String(),
			Family:         fam,
			BaseURL:        cfg.Backends[name],
			RequestTimeout: time.Duration(cfg.BackendTimeoutSeconds) * time.Second,
		}))
	}
	return loader.NewSet(ls...), nil
}

// printDiagnostics writes the device listing as JSON. An absent driver is
// reported in the payload, not as an error.
func printDiagnostics(ctx context.Context, w io.Writer, index int, log zerolog.Logger) error {
	gpu := probe.NewNVML(index, &log)
	resp := types.DiagnosticsResponse{GPUs: []types.GPUInfo{}}
	if err := gpu.Init(ctx); err != nil {
		resp.Error = err.Error()
	} else {
		defer func() { _ = gpu.Shutdown() }()
		ds, err := gpu.Devices()
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Available = true
			resp.GPUs = manager.GPUDTOs(ds)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
