// aclcored is the control-plane binary: it serves the REST API, exposes
// Prometheus metrics, and drives the ACL compilation core against storage
// and the gateway daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
	"github.com/fenwall/aclcore/internal/api"
	"github.com/fenwall/aclcore/internal/auth"
	"github.com/fenwall/aclcore/internal/config"
	"github.com/fenwall/aclcore/internal/gateway"
	"github.com/fenwall/aclcore/internal/metrics"
	"github.com/fenwall/aclcore/internal/store"
	"github.com/fenwall/aclcore/internal/vpn"
	"github.com/fenwall/aclcore/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Config ────────────────────────────────────────────────────────────
	cfgFile := os.Getenv("ACLCORE_CONFIG")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ── Logger ────────────────────────────────────────────────────────────
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("aclcore starting", zap.String("version", "0.1.0"))

	// ── Database ──────────────────────────────────────────────────────────
	ctx := context.Background()
	db, err := store.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// ── Storage-layer contract + rule CRUD ───────────────────────────────
	activityRecorder := store.NewLoggingActivityRecorder(log)
	ruleStore := store.NewRuleStore(db).WithActivityRecorder(activityRecorder)
	var aclStore acl.Store = store.NewPGStore(db)
	cachedStore := store.NewCachedStore(aclStore, cfg.Redis, log)
	defer cachedStore.Close()
	aclStore = cachedStore

	compiler := acl.NewCompiler(aclStore).WithActivityRecorder(activityRecorder)

	// ── Gateway publisher ─────────────────────────────────────────────────
	publisher := gateway.NewGRPCPublisher(
		cfg.Gateway.Addr, cfg.Gateway.ServiceToken, cfg.Gateway.PushTimeout, cfg.Gateway.InsecureTransport)
	if cfg.Gateway.Addr != "" {
		if err := publisher.Dial(); err != nil {
			return fmt.Errorf("dial gateway: %w", err)
		}
		defer publisher.Close()
	}
	gatewaySvc := gateway.NewService(compiler, publisher, log)

	// ── Auth ──────────────────────────────────────────────────────────────
	authSvc, err := auth.NewService(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTExpiry:     cfg.Auth.JWTExpiry,
		AdminUser:     cfg.Auth.AdminUser,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	// ── WireGuard diagnostics ─────────────────────────────────────────────
	var vpnMgr *vpn.Manager
	if cfg.VPN.Enabled {
		vpnMgr = vpn.NewManager(cfg.VPN.Interface, log)
	}

	// ── Metrics server ────────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path)
		go func() {
			if err := metricsSrv.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started", zap.Int("port", cfg.Metrics.Port))
	}

	// ── HTTP API server ───────────────────────────────────────────────────
	srv := api.NewServer(api.ServerDeps{
		Config:     cfg,
		RuleStore:  ruleStore,
		GatewaySvc: gatewaySvc,
		AuthSvc:    authSvc,
		VPNMgr:     vpnMgr,
		Log:        log,
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}
