package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"residencyd/internal/manager"
	"residencyd/internal/probe"
	"residencyd/internal/residency"
	"residencyd/pkg/types"
)

// Service defines the model management methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	CurrentID() string
	Switch(ctx context.Context, id string) (manager.SwitchResult, error)
	Unload(ctx context.Context, id string) error
	UnloadAll(ctx context.Context) manager.UnloadResult
	Status() types.StatusResponse
	Ready() bool
}

// Residency is the read side of the residency tracker.
type Residency interface {
	GhostStatus() residency.GhostStatus
	LoadedModels() []residency.Record
}

// ZombieControl is the runtime surface of the zombie killer.
type ZombieControl interface {
	Config() residency.ZombieView
	SetEnabled(bool)
	SetInterval(time.Duration) time.Duration
}

// HostStats reports host CPU, RAM and process RSS.
type HostStats interface {
	Stats() probe.HostStats
}

// Deps are the optional collaborators behind the /v1/system and
// /diagnostics routes. Nil members disable or degrade their routes.
type Deps struct {
	Residency Residency
	Zombie    ZombieControl
	Host      HostStats
	Devices   probe.DeviceLister
	// Metrics serves /metrics; defaults to the global Prometheus registry.
	Metrics http.Handler
}

func NewMux(svc Service, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Accept", "Content-Type", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}

	h := &handlers{svc: svc, deps: deps}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", h.listModels)
		r.Post("/models/switch", h.switchModel)
		r.Post("/models/{id}/unload", h.unloadModel)

		r.Route("/system", func(r chi.Router) {
			r.Post("/unload", h.unloadAll)
			r.Get("/status", h.status)
			r.Get("/metrics", h.systemMetrics)
			r.Get("/ghost", h.ghost)
			r.Get("/zombie-killer", h.zombieConfig)
			r.Post("/zombie-killer", h.zombieUpdate)
		})
	})
	r.Get("/diagnostics/gpus", h.diagnostics)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc  Service
	deps Deps
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.ListModels(), Current: h.svc.CurrentID()})
}

func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}

	// Shutdown cancels an in-flight load as well as a client disconnect.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if switchTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, switchTimeout)
		defer tcancel()
	}
	res, err := h.svc.Switch(ctx, req.Model)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	resp := types.SwitchResponse{Previous: res.Previous, Current: res.Current, Changed: res.Changed}
	if h.deps.Residency != nil {
		resp.Ghost = manager.GhostDTO(h.deps.Residency.GhostStatus())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Unload(r.Context(), id); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	resp := types.UnloadResponse{Unloaded: id}
	if h.deps.Residency != nil {
		resp.Ghost = manager.GhostDTO(h.deps.Residency.GhostStatus())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) unloadAll(w http.ResponseWriter, r *http.Request) {
	res := h.svc.UnloadAll(r.Context())
	resp := types.UnloadResponse{
		Released:       orDefault(res.Released, []string{}),
		Failed:         res.Failed,
		RecordsCleared: res.RecordsCleared,
	}
	if h.deps.Residency != nil {
		resp.Ghost = manager.GhostDTO(h.deps.Residency.GhostStatus())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handlers) ghost(w http.ResponseWriter, r *http.Request) {
	if h.deps.Residency == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "residency tracking not configured")
		return
	}
	writeJSON(w, http.StatusOK, manager.GhostDTO(h.deps.Residency.GhostStatus()))
}

func (h *handlers) systemMetrics(w http.ResponseWriter, r *http.Request) {
	resp := types.MetricsResponse{GPUs: []types.GPUInfo{}, LoadedModels: []types.LoadedModel{}}
	if h.deps.Host != nil {
		st := h.deps.Host.Stats()
		resp.CPU = st.CPUPercent
		resp.Memory = st.RAMPercent
		resp.ProcessRSSMB = st.ProcessRSSMB
	}
	if h.deps.Devices != nil {
		if ds, err := h.deps.Devices.Devices(); err == nil {
			resp.GPUs = manager.GPUDTOs(ds)
		} else {
			zlog.Debug().Err(err).Msg("device listing unavailable")
		}
	}
	if h.deps.Residency != nil {
		resp.LoadedModels = manager.LoadedDTOs(h.deps.Residency.LoadedModels())
		resp.GhostMemory = manager.GhostDTO(h.deps.Residency.GhostStatus())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) zombieConfig(w http.ResponseWriter, r *http.Request) {
	if h.deps.Zombie == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "zombie killer not configured")
		return
	}
	writeJSON(w, http.StatusOK, manager.ZombieDTO(h.deps.Zombie.Config()))
}

func (h *handlers) zombieUpdate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Zombie == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "zombie killer not configured")
		return
	}
	var req types.ZombieKillerUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Interval != nil {
		if *req.Interval <= 0 {
			writeJSONError(w, http.StatusBadRequest, "interval must be positive")
			return
		}
		h.deps.Zombie.SetInterval(time.Duration(*req.Interval) * time.Second)
	}
	if req.Enabled != nil {
		h.deps.Zombie.SetEnabled(*req.Enabled)
	}
	writeJSON(w, http.StatusOK, manager.ZombieDTO(h.deps.Zombie.Config()))
}

func (h *handlers) diagnostics(w http.ResponseWriter, r *http.Request) {
	resp := types.DiagnosticsResponse{GPUs: []types.GPUInfo{}}
	if h.deps.Devices == nil {
		resp.Error = probe.ErrUnavailable.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	ds, err := h.deps.Devices.Devices()
	if err != nil {
		resp.Error = err.Error()
		status := http.StatusOK
		if !errors.Is(err, probe.ErrUnavailable) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}
	resp.Available = true
	resp.GPUs = manager.GPUDTOs(ds)
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
