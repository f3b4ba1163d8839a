package http

import (
	"net/http"

	"p2pstats/internal/api/http/handlers"
	"p2pstats/internal/api/http/mw"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func BuildRouter(
	h *handlers.Handler,
	metricsHandler http.Handler,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
	jwtMW *mw.JWTMiddleware,
	corsMW *mw.CORSMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoints, no auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	if metricsHandler != nil {
		r.Mount("/metrics", metricsHandler)
	}

	// business endpoints behind rate limit and jwt
	protected := chi.NewRouter()
	if rateLimitMW != nil {
		protected.Use(rateLimitMW.Handler)
	}
	if jwtMW != nil {
		protected.Use(jwtMW.Handler)
	}

	protected.Route("/api", func(apiR chi.Router) {
		apiR.Route("/reports", func(rr chi.Router) {
			rr.Post("/", h.CreateReport)
			rr.Get("/{id}", h.GetReport)
		})
	})

	r.Mount("/", protected)
	return r
}
