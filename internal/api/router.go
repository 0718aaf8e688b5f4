package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ideaboard-app/ideaboard/internal/database"
	mw "github.com/ideaboard-app/ideaboard/internal/middleware"
	inats "github.com/ideaboard-app/ideaboard/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Generation handlers
	Generate     http.HandlerFunc
	GeneratePlan http.HandlerFunc
	Usage        http.HandlerFunc

	// Idea handlers
	ListIdeas           http.HandlerFunc
	GetIdea             http.HandlerFunc
	DeleteIdea          http.HandlerFunc
	OwnershipMiddleware func(http.Handler) http.Handler

	// Billing handlers
	GetSubscription    http.HandlerFunc
	CancelSubscription http.HandlerFunc
	ListPayments       http.HandlerFunc
	ValidateCoupon     http.HandlerFunc

	// Webhook handler (public, signature-verified)
	RazorpayWebhook http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Payment gateway webhook — public, authenticated by HMAC signature
	if h.RazorpayWebhook != nil {
		r.Post("/webhooks/razorpay", h.RazorpayWebhook)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/generate", h.Generate)
			r.Get("/usage", h.Usage)

			// Idea routes
			r.Route("/ideas", func(r chi.Router) {
				r.Get("/", h.ListIdeas)

				r.Route("/{ideaID}", func(r chi.Router) {
					r.Use(h.OwnershipMiddleware)
					r.Get("/", h.GetIdea)
					r.Delete("/", h.DeleteIdea)
					r.Post("/plan", h.GeneratePlan)
				})
			})

			// Billing routes
			r.Route("/billing", func(r chi.Router) {
				r.Get("/subscription", h.GetSubscription)
				r.Post("/subscription/cancel", h.CancelSubscription)
				r.Get("/payments", h.ListPayments)
				r.Get("/coupons/{code}", h.ValidateCoupon)
			})
		})
	})

	return r
}
