package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth      *AuthHandler
	Shipments *ShipmentsHandler
	Products  *ProductsHandler
	Carriers  *CarriersHandler
	Admin     *AdminHandler
	Verifier  TokenVerifier
}

// NewRouter builds the full API surface under /api. Everything except
// healthz, login/register and the carrier listing sits behind the session
// middleware.
func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		h.Auth.RegisterPublic(r)
		h.Carriers.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.Verifier))
			h.Auth.RegisterPrivate(r)
			h.Carriers.RegisterPrivate(r)
			h.Shipments.Register(r)
			h.Products.Register(r)
			h.Admin.Register(r)
		})
	})

	return r
}
