package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genkey/config"
	"genkey/internal/certs"
	"genkey/internal/handlers"
	"genkey/middleware"
)

// maxRequestBodyBytes bounds POST /pkcs12 bodies.
const maxRequestBodyBytes int64 = 64 << 10

var errMissingIssuer = errors.New("issuer is required")

func buildRouter(cfg config.Config, issuer certs.Issuer, registry *prometheus.Registry) (http.Handler, error) {
	if issuer == nil {
		return nil, errMissingIssuer
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.CORS.AllowedOrigins
	}
	corsConfig.AllowCredentials = cfg.CORS.AllowCredentials

	rateLimitConfig := middleware.DefaultRateLimitConfig()
	rateLimitConfig.MaxRequests = cfg.RateLimit.MaxRequests
	rateLimitConfig.Window = cfg.RateLimit.Window
	rateLimitConfig.TrustProxy = cfg.TrustProxy

	r := chi.NewRouter()

	// Middleware must be registered before any routes
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(corsConfig))

	r.Get("/status", handlers.Status)
	r.Get("/api/health", handlers.HealthCheck)
	r.Get("/api/ready", handlers.ReadinessCheck)
	r.Get("/api/version", handlers.GetVersion)
	r.Get("/api/config", handlers.GetConfig(cfg))
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(maxRequestBodyBytes))
		r.Use(middleware.RateLimit(rateLimitConfig))
		r.Use(middleware.APIKey(cfg.APIKeyHash))
		handlers.RegisterPKCS12Routes(r, issuer)
	})

	return r, nil
}
