package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"genkey/config"
	"genkey/internal/certs"
	"genkey/internal/logger"
	"genkey/internal/metrics"
	"genkey/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{Level: "info"})
		logger.Get().Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger from config
	logger.Init(logger.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFilePath,
	})
	log := logger.Get()

	log.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Msg("genkey starting")

	log.Info().
		Str("env", string(cfg.Env)).
		Str("log_level", cfg.LogLevel).
		Str("log_format", cfg.LogFormat).
		Str("settings_path", cfg.SettingsPath).
		Int("validity_days", cfg.Certificates.ValidityDays).
		Bool("verify_archives", cfg.Certificates.VerifyArchives).
		Bool("api_key_required", cfg.AuthEnabled()).
		Msg("Configuration loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	issuanceMetrics, err := metrics.NewIssuanceMetrics(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register issuance metrics")
	}

	service := certs.NewService(cfg.IssuanceSettings(), nil, nil)
	issuer := metrics.InstrumentIssuer(service, issuanceMetrics)

	router, err := buildRouter(cfg, issuer, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	signal.Stop(quit)

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
