package boot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/r-heap47/gamehost/internal/api/gateway"
	v1 "github.com/r-heap47/gamehost/internal/api/grpc/v1"
	"github.com/r-heap47/gamehost/internal/config"
	"github.com/r-heap47/gamehost/internal/handle"
	"github.com/r-heap47/gamehost/internal/metrics"
	"github.com/r-heap47/gamehost/internal/observer"
	"github.com/r-heap47/gamehost/internal/orchestrator"
	"github.com/r-heap47/gamehost/internal/panel"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
	"github.com/r-heap47/gamehost/internal/pkg/async"
	"github.com/r-heap47/gamehost/internal/pkg/utils"
	"github.com/r-heap47/gamehost/internal/placement"
	"github.com/r-heap47/gamehost/internal/repository"
	"github.com/r-heap47/gamehost/internal/tracing"
)

const serviceName = "gamehost"

// Run .
func Run() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "gamehost",
		Short:         "Game server provisioning daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config.Load: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config file")

	return cmd
}

// nolint: revive
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("newLogger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	redirectGRPCLogs(logger)

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Pretty:      cfg.Tracing.Pretty,
		ServiceName: serviceName,
		Output:      os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("tracing.Setup: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	m := metrics.New()

	pool, err := async.NewPool(cfg.Pool.Workers)
	if err != nil {
		return fmt.Errorf("async.NewPool: %w", err)
	}
	m.RegisterPool(pool)

	signals, err := openSignals(cfg.Signals, logger)
	if err != nil {
		return fmt.Errorf("openSignals: %w", err)
	}
	defer func() { _ = signals.Close() }()

	sim, closePanel, err := openPanel(ctx, cfg, signals, logger)
	if err != nil {
		return fmt.Errorf("openPanel: %w", err)
	}
	defer closePanel()

	binder := handle.NewBinder(handle.Config{
		Panel: sim,
		Pool:  pool,
		Timeouts: handle.Timeouts{
			Read:  utils.Const(cfg.Timeouts.Read.Duration),
			Write: utils.Const(cfg.Timeouts.Write.Duration),
			Scan:  utils.Const(cfg.Timeouts.Scan.Duration),
		},
		FallbackAddress:    cfg.Provisioning.FallbackAddress,
		ControlPermissions: permissions(cfg.Provisioning.ControlPermissions),
		Metrics:            m,
		Logger:             logger,
	})

	policy := placement.New(cfg.Placement.LowHeadroomMB)
	prov := cfg.Provisioning

	orc, err := orchestrator.New(orchestrator.Config{
		Binder:             binder,
		Policy:             policy,
		Signals:            signals,
		Metrics:            m,
		Logger:             logger,
		DefaultEmailDomain: prov.DefaultEmailDomain,
		AllocationMode:     orchestrator.AllocationMode(prov.AllocationMode),
		OwnerMode:          orchestrator.OwnerMode(prov.OwnerMode),
		ServiceAccountID:   prov.ServiceAccountID,
		GrantMode:          orchestrator.GrantMode(prov.GrantMode),
		JarFile:            prov.JarFile,
		StartOnCompletion:  prov.StartOnCompletion,
		Features: panel.FeatureLimits{
			Databases: prov.FeatureLimits.Databases,
			Backups:   prov.FeatureLimits.Backups,
		},
		Environment:      prov.Environment,
		OwnerPermissions: permissions(prov.OwnerPermissions),
	})
	if err != nil {
		return fmt.Errorf("orchestrator.New: %w", err)
	}

	repoCfg := &repository.Config{Binder: binder}
	impl := v1.New(&v1.Config{
		Orchestrator: orc,
		Servers:      repository.NewServers(repoCfg),
		Users:        repository.NewUsers(repoCfg),
		Binder:       binder,
		Logger:       logger,
	})

	var obs *observer.Observer
	if cfg.Observer.Enabled {
		obs = observer.New(observer.Config{
			Nodes:          sim,
			Policy:         policy,
			Metrics:        m,
			Logger:         logger,
			Delay:          utils.Const(cfg.Observer.Delay.Duration),
			Timeout:        utils.Const(cfg.Observer.Timeout.Duration),
			ErrorThreshold: utils.Const(cfg.Observer.ErrorThreshold),
		})
	}

	// === GRPC SERVER SETUP ===

	grpcEndpoint := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)

	grpcServer := grpc.NewServer()
	pbgamehost.RegisterProvisionerServer(grpcServer, impl)

	lis, err := net.Listen("tcp", grpcEndpoint)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}

	// === GRPC-GATEWAY (HTTP) SERVER SETUP ===

	gwEndpoint := fmt.Sprintf("%s:%s", cfg.Gateway.Host, cfg.Gateway.Port)

	var healthy func() bool
	if obs != nil {
		healthy = obs.Healthy
	}

	gwMux, err := gateway.New(&gateway.Config{
		Provisioner: impl,
		Registry:    m.Registry(),
		Healthy:     healthy,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("gateway.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              gwEndpoint,
		Handler:           gwMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("grpc server is set up", zap.String("endpoint", grpcEndpoint))

		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpcServer.Serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("grpc-gateway server is set up", zap.String("endpoint", gwEndpoint))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("httpServer.ListenAndServe: %w", err)
		}
		return nil
	})

	if obs != nil {
		g.Go(func() error {
			// a panel that stays down only fails the health check
			if err := obs.Run(gctx); err != nil {
				logger.Error("observer stopped", zap.Error(err))
			}
			return nil
		})
	}

	// === GRACEFUL SHUTDOWN ===

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down grpc server...")
		grpcServer.GracefulStop()

		logger.Info("shutting down grpc-gateway server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout.Duration)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpServer.Shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout.Duration)
	defer cancel()

	if perr := pool.Close(drainCtx); perr != nil {
		logger.Warn("worker pool did not drain", zap.Error(perr))
	}

	if err != nil {
		return err
	}

	logger.Info("shutdown success")

	return nil
}

func permissions(keys []string) []panel.Permission {
	return lo.Map(keys, func(k string, _ int) panel.Permission { return panel.Permission(k) })
}
