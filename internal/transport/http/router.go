package httptransport

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"truckgate/internal/platform/middleware"
	"truckgate/pkg/platform/httputil"
	"truckgate/pkg/platform/middleware/metadata"
	"truckgate/pkg/platform/middleware/requesttime"
	"truckgate/pkg/requestcontext"
)

// Module mounts its own routes.
type Module interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options configures the shared router.
type Options struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// StaticDir is served under /static/. Empty disables it.
	StaticDir string
	// Metrics is served under /metrics when non-nil.
	Metrics http.Handler
	Latency middleware.EndpointObserver
	Health  map[string]HealthCheck
}

// NewRouter wires the middleware chain, the platform endpoints and every
// module's routes.
func NewRouter(opts Options, modules ...Module) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.LatencyMiddleware(opts.Latency))

	r.Get("/healthz", healthHandler(opts.Health, opts.Logger))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(noDirListing{http.Dir(opts.StaticDir)})))
	}

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		for _, m := range modules {
			m.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", requestcontext.RequestID(ctx),
					"check", name,
					"error", err,
				)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}

// noDirListing hides directory indexes under /static.
type noDirListing struct {
	fs http.FileSystem
}

func (n noDirListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
