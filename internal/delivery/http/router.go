package http

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"bawabamail/internal/delivery/http/controllers"
	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/delivery/http/middleware"
	"bawabamail/internal/domain"
)

// RouterDeps holds the controllers and middleware dependencies of the API.
type RouterDeps struct {
	Logger         *slog.Logger
	Verifier       domain.TokenVerifier
	Limiter        domain.RateLimiter
	AllowedOrigins []string
	TrustedProxies []netip.Prefix

	Auth        *controllers.AuthController
	Campaigns   *controllers.CampaignController
	Subscribers *controllers.SubscriberController
	Newsletter  *controllers.NewsletterController
	Health      *controllers.HealthController
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.WriteJSONError(w, http.StatusMethodNotAllowed, h.ErrCodeBadRequest, "method not allowed")
	})

	r.Get("/healthz", d.Health.Health)

	// Auth
	r.Post("/auth/login", d.Auth.Login)

	// Operators
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Verifier, d.Logger))
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", d.Campaigns.Create)
			r.Get("/", d.Campaigns.List)
			r.Get("/{id}", d.Campaigns.Get)
			r.Patch("/{id}", d.Campaigns.Update)
			r.Delete("/{id}", d.Campaigns.Delete)
			r.Post("/{id}/duplicate", d.Campaigns.Duplicate)
			r.Post("/{id}/preview", d.Campaigns.Preview)
		})
		r.Get("/subscribers", d.Subscribers.List)
	})

	// Readers
	r.Route("/api/newsletter", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Limiter, d.TrustedProxies, d.Logger))
		r.Post("/subscribe", d.Newsletter.Subscribe)
		r.Post("/unsubscribe", d.Newsletter.Unsubscribe)
		r.Get("/unsubscribe", d.Newsletter.UnsubscribeByToken)
		r.Post("/unsubscribe/one-click", d.Newsletter.OneClickUnsubscribe)
	})

	// Swagger
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}
