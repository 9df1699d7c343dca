package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"fieldlink/internal/bridge"
	bridgemetrics "fieldlink/internal/bridge/metrics"
	"fieldlink/internal/connect"
	"fieldlink/internal/credential"
	"fieldlink/internal/fsm"
	"fieldlink/internal/platform/config"
	"fieldlink/internal/platform/httpserver"
	"fieldlink/internal/platform/logger"
	"fieldlink/internal/tenant/resolver"
	"fieldlink/internal/tenant/store"
	httptransport "fieldlink/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing fieldlink", "addr", cfg.Addr, "base_url", cfg.BaseURL)

	tenantStore, err := store.NewInMemoryFromSeed(cfg.TenantSeedJSON, cfg.TenantSeedPath)
	if err != nil {
		log.Error("loading tenant seed failed", "error", err)
		os.Exit(1)
	}
	tenants := resolver.New(tenantStore, log)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	metrics := bridgemetrics.New()

	tokens := fsm.NewTokenCache(cfg.FSMTokenURL, httpClient, fsm.WithCacheMetrics(metrics))
	platform := fsm.NewClient(httpClient, tokens, log, fsm.WithVersions(fsm.Versions{
		Activity:  cfg.ActivityVersion,
		Contact:   cfg.ContactVersion,
		Person:    cfg.PersonVersion,
		Equipment: cfg.EquipmentVersion,
	}))

	issuer := credential.NewIssuer(cfg.CredentialSigningKey, cfg.CredentialIssuer, cfg.CredentialAudience, cfg.CredentialTTL)
	auth := bridge.New(tenants, platform, bridge.NewOIDCClient(httpClient), issuer,
		cfg.BaseURL, log, bridge.WithMetrics(metrics))

	launcher := connect.NewLauncher(httpClient, cfg.LaunchURL, log)
	contacts := connect.NewResolver(platform, httptransport.ConnectionURL, log)

	handler := httptransport.NewHandler(auth, tenants, contacts, launcher, issuer, log)
	router := httptransport.NewRouter(handler, log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
