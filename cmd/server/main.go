/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fleet rental server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration, apply flag overrides
  2. Configure slog
  3. Open the store (memory, SQLite or PostgreSQL)
  4. Pick the car locker (Redis when REDIS_ADDR is set, in-process otherwise)
  5. Build the rental service with metrics
  6. Load the seed file, if any
  7. Start the snapshot scheduler, if enabled
  8. Serve HTTP until SIGINT/SIGTERM

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (SERVER_PORT, default: 8080)
  -driver  Store driver: memory, sqlite, sqlite-pure, postgres (STORE_DRIVER)
  -db      SQLite path or PostgreSQL URL (STORE_DSN)
  -seed    Fleet document to load on startup (SEED_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  3. Stop the snapshot scheduler
  4. Close store and Redis connections

EXAMPLES:
  # In-memory store with a seeded fleet
  ./server -seed=./fleet.yaml

  # SQLite file
  ./server -driver=sqlite -db="./data/fleet.db"

  # PostgreSQL with Redis locks and S3 snapshots
  DATABASE_URL=postgres://fleet@db/fleet REDIS_ADDR=redis:6379 \
  SNAPSHOT_DRIVER=s3 SNAPSHOT_S3_BUCKET=fleet-snapshots ./server -driver=postgres

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/fleet-rental/api"
	"github.com/warp/fleet-rental/config"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/fleet/store"
	"github.com/warp/fleet-rental/lock"
	"github.com/warp/fleet-rental/logging"
	"github.com/warp/fleet-rental/metrics"
	"github.com/warp/fleet-rental/rental"
	"github.com/warp/fleet-rental/snapshot"
	"github.com/warp/fleet-rental/store/sqlstore"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	driver := flag.String("driver", cfg.Store.Driver, "Store driver: memory, sqlite, sqlite-pure, postgres")
	dsn := flag.String("db", cfg.Store.DSN, "SQLite database path or PostgreSQL URL")
	seed := flag.String("seed", cfg.Seed.File, "Fleet document loaded on startup")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Store.Driver = *driver
	cfg.Store.DSN = *dsn
	cfg.Seed.File = *seed
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting", "config", cfg.String())

	// Initialize store
	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	// Car locks
	opts := []rental.Option{rental.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker := lock.NewRedis(rdb, cfg.Redis.LockTTL)
		defer locker.Close()
		if err := locker.Ping(ctx); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, rental.WithLocker(locker))
		logger.Info("using redis car locks", "addr", cfg.Redis.Addr)
	} else {
		opts = append(opts, rental.WithLocker(lock.NewLocal()))
	}

	recorder := metrics.New()
	opts = append(opts, rental.WithRecorder(recorder))
	svc := rental.NewService(st, opts...)

	handler := api.NewHandler(svc)

	if cfg.Seed.File != "" {
		doc, err := handler.Factory.ParseFile(cfg.Seed.File)
		if err != nil {
			return err
		}
		report, err := handler.Factory.Load(ctx, svc, doc)
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.Seed.File, err)
		}
		logger.Info("seed loaded", "file", cfg.Seed.File,
			"cars", report.Cars, "customers", report.Customers, "rents", report.Rents)
	}

	// Snapshot publishing
	pub, err := openPublisher(ctx, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("snapshot publisher: %w", err)
	}
	if pub != nil {
		scheduler := snapshot.NewScheduler(svc, pub, logger)
		scheduler.Interval = cfg.Snapshot.Interval
		scheduler.Observer = recorder
		scheduler.Start()
		defer scheduler.Stop()
		handler.Snapshots = scheduler
	}

	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     recorder.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(cfg config.StoreConfig) (fleet.TxStore, func(), error) {
	if cfg.Driver == "memory" {
		return store.NewMemory(), func() {}, nil
	}
	st, err := sqlstore.Open(sqlstore.Driver(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

func openPublisher(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Publisher, error) {
	switch cfg.Driver {
	case "file":
		return snapshot.NewFilePublisher(cfg.Dir), nil
	case "s3":
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return snapshot.NewS3Publisher(initCtx, snapshot.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, nil
	}
}
