// GopherLock server
//
// Entry point: wires all components together and manages graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/mtiwari1/gopherlock/internal/archive"
	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/config"
	"github.com/mtiwari1/gopherlock/internal/grpcserver"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/logging"
	"github.com/mtiwari1/gopherlock/internal/repository"
	"github.com/mtiwari1/gopherlock/internal/restapi"
	"github.com/mtiwari1/gopherlock/internal/storage"
	"github.com/mtiwari1/gopherlock/internal/worker"
	pb "github.com/mtiwari1/gopherlock/proto"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "gopherlock:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ── Structured logger ──
	logger, logCloser, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting GopherLock",
		slog.String("storage", cfg.Storage.Type),
		slog.String("repository", cfg.Repository.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage + repository ──
	store, err := config.CreateStore(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	repo, err := config.CreateRepository(ctx, &cfg.Repository)
	if err != nil {
		return err
	}
	defer repo.Close()

	// ── Lock call: in process, or a remote LockService ──
	service := locker.NewService(store, cfg.Lock.URLTTL, logger)
	var batchLocker batch.Locker = service
	if cfg.Lock.RemoteTarget != "" {
		remote, err := grpcserver.Dial(cfg.Lock.RemoteTarget)
		if err != nil {
			return err
		}
		defer remote.Close()
		batchLocker = remote
		logger.Info("batch runs use remote lock service", slog.String("target", cfg.Lock.RemoteTarget))
	}

	registry := batch.NewRegistry(batchLocker, logger,
		batch.WithCallTimeout(cfg.Lock.CallTimeout),
		batch.WithObserver(repository.Persist(repo, logger)),
	)

	// ── Upload worker pool ──
	pool := worker.NewPool(cfg.Lock.UploadWorkers, store, logger)
	pool.Start()
	logger.Info("worker pool started", slog.Int("workers", cfg.Lock.UploadWorkers))

	sweeper := storage.NewSweeper(store, cfg.Retention.MaxAge, logger)

	// Runs are parented on their own context so a shutdown can stop them at
	// the next file boundary after HTTP has drained.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	fetcher := archive.FallbackFetcher{archive.StoreFetcher{Store: store}, archive.NewHTTPFetcher()}
	deps := restapi.Deps{
		Locker:         service,
		Store:          store,
		Repo:           repo,
		Registry:       registry,
		Pool:           pool,
		Packager:       archive.New(fetcher, logger),
		Sweeper:        sweeper,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CleanupSecret:  cfg.Server.CleanupSecret,
		DefaultMethod:  locker.Method(cfg.Lock.DefaultMethod),
		RunContext:     runCtx,
		Logger:         logger,
	}
	if v, ok := store.(restapi.URLVerifier); ok {
		deps.Verifier = v
	}
	handler := restapi.NewHandler(deps)

	// ── Results handler goroutine ──
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		handler.ApplyUploadResults(pool.Results())
	}()

	// ── Retention ──
	if cfg.Retention.Enabled {
		go sweeper.Run(ctx, cfg.Retention.Interval)
		go sweepRecords(ctx, repo, registry, cfg.Retention.MaxAge, cfg.Retention.Interval, logger)
		logger.Info("retention enabled",
			slog.Duration("max_age", cfg.Retention.MaxAge),
			slog.Duration("interval", cfg.Retention.Interval),
		)
	}

	// ── gRPC server ──
	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcSrv = grpc.NewServer()
		pb.RegisterLockServiceServer(grpcSrv, grpcserver.NewServer(service, repo, logger))

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen gRPC: %w", err)
		}
		go func() {
			logger.Info("gRPC server listening", slog.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC serve", slog.String("error", err.Error()))
			}
		}()
	}

	// ── REST API ──
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:        cfg.Server.HTTPAddr,
		Handler:     mux,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: event streams and large downloads stay open.
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── Graceful shutdown (SIGINT / SIGTERM) ──
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("HTTP serve", slog.String("error", err.Error()))
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutCancel()

	// 1. Stop accepting new HTTP requests.
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown", slog.String("error", err.Error()))
	}
	logger.Info("HTTP server stopped")

	// 2. Stop gRPC server gracefully.
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	// 3. Stop active runs at their next boundary.
	stopRuns()
	waitForRuns(shutCtx, registry)

	// 4. Drain worker pool.
	pool.Shutdown()
	<-resultsDone
	logger.Info("worker pool drained")

	logger.Info("GopherLock shutdown complete")
	return nil
}

// sweepRecords drops expired repository records and idle batches.
func sweepRecords(ctx context.Context, repo repository.Repository, registry *batch.Registry, maxAge, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteOlderThan(ctx, time.Now().Add(-maxAge))
			if err != nil {
				logger.Error("record sweep", slog.String("error", err.Error()))
				continue
			}
			dropped := registry.Sweep(maxAge)
			logger.Info("record sweep finished", slog.Int("deleted", n), slog.Int("batches_dropped", dropped))
		}
	}
}

// waitForRuns polls until no batch is running or ctx expires.
func waitForRuns(ctx context.Context, registry *batch.Registry) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		running := false
		for _, b := range registry.List() {
			if b.Running() {
				running = true
				break
			}
		}
		if !running {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
