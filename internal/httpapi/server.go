package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"vllmd/internal/supervisor"
	"vllmd/pkg/types"
)

// Service defines the supervisor operations required by the HTTP API layer.
type Service interface {
	Start(ctx context.Context, model string) (supervisor.StartResult, error)
	Stop(ctx context.Context, model string) (supervisor.StopResult, error)
	Status(ctx context.Context) types.ControlStatus
	Ready() bool
}

// FeedSource hands out live-feed subscriptions.
type FeedSource interface {
	Subscribe() (<-chan types.FeedFrame, func())
}

// ModelCatalog lists models available to start.
type ModelCatalog interface {
	AvailableModels(ctx context.Context) ([]string, error)
}

// NewMux builds the HTTP router. feed and catalog may be nil, in which case
// the live feed answers 503 and the catalog is empty.
func NewMux(svc Service, feed FeedSource, catalog ModelCatalog) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(*logger()))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		if requestLogLevel(r) < LevelDebug {
			return
		}
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("dur", dur).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	}))
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints; event streams are not compressed.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins(),
			AllowedMethods: corsMethods(),
			AllowedHeaders: corsHeaders(),
			MaxAge:         300,
		}))
	}

	r.Route("/api/vllm", func(r chi.Router) {
		r.Post("/start", startHandler(svc))
		r.Post("/stop", stopHandler(svc))
		r.Get("/control/status", statusHandler(svc))
		r.Get("/available-models", availableModelsHandler(catalog))
		r.Get("/events", eventsHandler(feed))
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

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

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// startHandler godoc
// @Summary      Start a vLLM instance
// @Description  Spawns `vllm serve` for the model on the next free port. Domain failures are reported with status "error".
// @Tags         vllm
// @Accept       json
// @Produce      json
// @Param        body  body      types.StartRequest  false  "Model to start"
// @Success      200   {object}  types.OpResult
// @Failure      400   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Router       /api/vllm/start [post]
func startHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StartRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			writeRequestError(w, err)
			return
		}
		model := strings.TrimSpace(req.Model)
		if model == "" {
			model = DefaultStartModel
		}
		start := time.Now()
		ctx, cancel := requestContext(r)
		defer cancel()
		res, err := svc.Start(ctx, model)
		logOp(r, "start", model, start, err)
		if err != nil {
			countOp("start", types.ResultError)
			writeOpError(w, err)
			return
		}
		countOp("start", types.ResultSuccess)
		port := res.Port
		writeJSON(w, http.StatusOK, types.OpResult{Status: types.ResultSuccess, Message: res.Message(), Port: &port})
	}
}

// stopHandler godoc
// @Summary      Stop vLLM instances
// @Description  Stops the named instance, or all instances when no model is given. Entries are removed even when a kill fails.
// @Tags         vllm
// @Accept       json
// @Produce      json
// @Param        body  body      types.StopRequest  false  "Instance to stop"
// @Success      200   {object}  types.OpResult
// @Failure      400   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Router       /api/vllm/stop [post]
func stopHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StopRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			writeRequestError(w, err)
			return
		}
		model := strings.TrimSpace(req.Model)
		start := time.Now()
		ctx, cancel := requestContext(r)
		defer cancel()
		res, err := svc.Stop(ctx, model)
		if err == nil {
			// Per-target kill failures are reported in the message, not as a failed request.
			err = res.Err()
			logOp(r, "stop", model, start, err)
			countOp("stop", types.ResultSuccess)
			writeJSON(w, http.StatusOK, types.OpResult{Status: types.ResultSuccess, Message: res.Message()})
			return
		}
		logOp(r, "stop", model, start, err)
		countOp("stop", types.ResultError)
		writeOpError(w, err)
	}
}

// statusHandler godoc
// @Summary      Instance status
// @Description  Reconciles the registry against live process state and returns every managed instance.
// @Tags         vllm
// @Produce      json
// @Success      200  {object}  types.ControlStatus
// @Router       /api/vllm/control/status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestContext(r)
		defer cancel()
		writeJSON(w, http.StatusOK, svc.Status(ctx))
	}
}

// availableModelsHandler godoc
// @Summary      Models in the local cache
// @Description  Lists model ids found in the Hugging Face hub cache.
// @Tags         vllm
// @Produce      json
// @Success      200  {array}   string
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/vllm/available-models [get]
func availableModelsHandler(catalog ModelCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		models, err := catalog.AvailableModels(r.Context())
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("scan model cache")
			writeJSONError(w, http.StatusInternalServerError, "failed to scan model cache")
			return
		}
		writeJSON(w, http.StatusOK, models)
	}
}
