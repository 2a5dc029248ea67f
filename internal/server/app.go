// Package server wires the access-control engine from configuration and runs
// the gRPC endpoint, the ledger mirror and the metrics endpoint until a
// shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/config"
	"github.com/JustWint3r/SecureShare/internal/server/mirror"
	"github.com/JustWint3r/SecureShare/internal/server/secret"
	"github.com/JustWint3r/SecureShare/internal/server/services"

	gs "github.com/JustWint3r/SecureShare/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	backends  *backends
	registry  *prometheus.Registry
	access    *services.AccessControl
	mirror    *mirror.Worker
	jwtSecret string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.New(c.LogFormat, c.LogLevel, os.Stdout))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	b := &backends{cfg: c}
	app := &App{config: c, logger: logger, backends: b, registry: prometheus.NewRegistry()}
	if err := app.build(ctx); err != nil {
		_ = b.close()
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context) error {
	c := app.config
	b := app.backends

	resolver, err := b.secrets(ctx)
	if err != nil {
		return err
	}
	jwtSecret, err := secret.Resolve(ctx, resolver, c.SecretKey)
	if err != nil {
		return fmt.Errorf("resolve secret key: %w", err)
	}
	masterKey, err := secret.Resolve(ctx, resolver, c.MasterKey)
	if err != nil {
		return fmt.Errorf("resolve master key: %w", err)
	}
	app.jwtSecret = jwtSecret

	wrapper, err := b.keyWrapper(ctx, masterKey)
	if err != nil {
		return fmt.Errorf("key wrapper init error: %w", err)
	}

	rm, err := b.repositories(ctx)
	if err != nil {
		return err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	store, err := b.objectStore(ctx)
	if err != nil {
		return fmt.Errorf("object store init error: %w", err)
	}
	writer, err := b.ledger(ctx)
	if err != nil {
		return fmt.Errorf("ledger init error: %w", err)
	}
	limiter, err := b.limiter()
	if err != nil {
		return fmt.Errorf("rate limiter init error: %w", err)
	}

	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mcfg := mirror.DefaultConfig()
	mcfg.Workers = c.MirrorWorkers
	mcfg.MaxAttempts = c.MirrorMaxAttempts
	if c.MirrorSweepInterval > 0 {
		mcfg.SweepInterval = c.MirrorSweepInterval
	}
	app.mirror = mirror.New(rm.AuditRecords(), writer, app.logger, mirror.NewMetrics(app.registry), mcfg)

	permissions := services.NewPermissionStore(rm.Documents(), rm.Grants())
	audit := services.NewAuditLedger(rm.AuditRecords(), app.mirror, c.Administrators)
	tokens := services.NewShareTokenManager(rm, permissions, audit, limiter,
		services.ShareTokenConfig{RedeemLimit: c.RedeemLimit, RedeemWindow: c.RedeemWindow}, app.logger)
	app.access = services.NewAccessControl(rm, cryptox.NewKeyVault(wrapper), cryptox.NewCipherEngine(),
		store, permissions, audit, tokens, app.logger)

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.access, app.jwtSecret)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is canceled, a shutdown signal arrives or a server
// fails, then releases every backend.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.mirror.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.backends.close(); err != nil {
		app.logger.Error(context.Background(), "error closing backends", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
