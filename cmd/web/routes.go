package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mw "finitefield.org/mercadito/internal/middleware"
	"finitefield.org/mercadito/internal/platform/observability"
)

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(middleware.RealIP)
	r.Use(observability.InjectLoggerMiddleware(a.logger.Named("http")))
	r.Use(observability.TraceMiddleware())
	r.Use(observability.RecoveryMiddleware(a.logger.Named("http")))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", a.healthz)

	// Static files: cache-first from the offline mirror, disk on a miss.
	static := a.offline.Handler(http.FileServer(http.Dir(a.cfg.Web.PublicDir)))
	r.Handle("/assets/*", static)
	r.Handle("/manifest.webmanifest", static)
	r.Handle("/service-worker.js", a.offline.WorkerHandler())
	r.Get("/catalog.json", a.catalogDocument)
	r.Get("/api/products", a.apiProducts)

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.Middleware)
		r.Use(mw.HTMX)
		r.Use(mw.Locale(a.bundle))
		r.Use(mw.CSRF(a.cfg.Session.Secure))

		r.Get("/", a.home)
		r.Get("/products", a.productsFrag)
		r.Get("/cart", a.cartFrag)
		r.Post("/cart/items/{id}/increment", a.cartIncrement)
		r.Post("/cart/items/{id}/decrement", a.cartDecrement)
		r.Delete("/cart/items/{id}", a.cartRemove)
		// Form fallback for browsers without htmx, which cannot send DELETE.
		r.Post("/cart/items/{id}/remove", a.cartRemove)
		r.Post("/cart/checkout", a.cartCheckout)
		r.Get("/api/cart", a.apiCart)
	})
	return r
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("redis unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
