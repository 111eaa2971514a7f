package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/config"
	"github.com/modelrelay/modelrelay/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	// Local backends can legitimately run for minutes, so the request
	// timeout tracks the slowest configured transport instead of a web
	// default. The dispatch deadlines derive from the request context, so
	// this budget must never undercut them.
	r.Use(middleware.Timeout(requestBudget(deps.Config.Dispatch)))

	// CORS middleware. The daemon binds to loopback; this exists for local
	// tooling served from another port.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", handlers.ListProviders(deps))
		r.Post("/chat", handlers.ChatCompletion(deps))

		r.Route("/usage", func(r chi.Router) {
			r.Get("/", handlers.GetUsage(deps))
			r.Post("/reset", handlers.ResetUsage(deps))
		})
	})

	return r
}

// requestBudget is the per-request wall clock: the slowest single
// transport, or a full remote retry sequence, plus margin.
func requestBudget(cfg config.DispatchConfig) time.Duration {
	retrySequence := cfg.RemoteTimeout * time.Duration(cfg.MaxRetries)
	return max(cfg.LocalHTTPTimeout, cfg.ProcessTimeout, retrySequence) + 30*time.Second
}

// requestLogger emits one structured access log line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
