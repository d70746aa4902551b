package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiMiddleware "github.com/phrazzld/miniminder/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if origins := app.config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"X-Trace-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(apiMiddleware.Metrics(app.metrics))

	h := app.reminderHandler

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.Ping)
		r.Get("/vapid-public-key", h.VAPIDPublicKey)
		r.Get("/schedule/{id}", h.GetSchedule)

		// Mutating endpoints
		r.Group(func(r chi.Router) {
			if rl := app.config.RateLimit; rl.RequestsPerSecond > 0 {
				r.Use(apiMiddleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, app.metrics).Handler)
			}
			r.Post("/subscribe", h.Subscribe)
			r.Post("/schedule", h.Schedule)
			r.Put("/schedule/{id}", h.Reschedule)
			r.Delete("/schedule/{id}", h.Cancel)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))

	if dir := app.config.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			app.logger.Warn("static directory not found, client UI not served", "static_dir", dir)
		}
	}

	return r
}
