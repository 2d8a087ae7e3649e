package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JonMunkholm/catalogue/internal/audit"
	"github.com/JonMunkholm/catalogue/internal/config"
	"github.com/JonMunkholm/catalogue/internal/core"
	_ "github.com/JonMunkholm/catalogue/internal/core/tables" // Register all tables
	"github.com/JonMunkholm/catalogue/internal/images"
	"github.com/JonMunkholm/catalogue/internal/journal"
	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/JonMunkholm/catalogue/internal/metrics"
	"github.com/JonMunkholm/catalogue/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the catalogue and serves until SIGINT or SIGTERM. Deferred
// cleanup runs on every return path.
func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	rec := metrics.New()

	storeOpts := []core.StoreOption{core.WithObserver(rec)}
	var j *journal.Journal
	if cfg.Store.JournalEnabled {
		path := cfg.Store.JournalPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Store.DataDir, path)
		}
		j, err = journal.Open(path)
		if err != nil {
			return fmt.Errorf("open journal %s: %w", path, err)
		}
		storeOpts = append(storeOpts, core.WithJournal(j))
	}

	store, err := core.OpenStore(cfg.Store.DataDir, storeOpts...)
	if err != nil {
		if j != nil {
			j.Close()
		}
		return fmt.Errorf("open catalogue %s: %w", cfg.Store.DataDir, err)
	}
	defer store.Close()

	slog.Info("tables registered",
		"count", core.TableCount(),
		"groups", len(core.Groups()),
		"dir", cfg.Store.DataDir,
	)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var (
		sink     core.AuditSink = core.LogAuditSink{}
		auditLog web.AuditReader
	)
	if cfg.Audit.DatabaseURL != "" {
		pg, err := audit.Open(ctx, cfg.Audit.DatabaseURL, cfg.Audit.MaxConns)
		if err != nil {
			return fmt.Errorf("connect to audit database: %w", err)
		}
		defer pg.Close()
		slog.Info("audit log stored in postgres")

		sink = core.MultiAuditSink{core.LogAuditSink{}, pg}
		auditLog = pg
		go audit.RunRetention(jobCtx, pg, cfg.Audit.RetentionDays, cfg.Audit.PurgeInterval)
	}

	service := core.NewService(store, core.ServiceConfig{
		KeyLength:   cfg.Store.KeyLength,
		KeyAttempts: cfg.Store.KeyAttempts,
		Audit:       sink,
		Observer:    rec,
	})

	var imageStore images.Store
	switch cfg.Images.Driver {
	case images.DriverS3:
		s3Store, err := images.NewS3(ctx, images.S3Config{
			Bucket:          cfg.Images.S3Bucket,
			Region:          cfg.Images.S3Region,
			Endpoint:        cfg.Images.S3Endpoint,
			PathStyle:       cfg.Images.S3PathStyle,
			AccessKeyID:     cfg.Images.S3AccessKeyID,
			SecretAccessKey: cfg.Images.S3SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("configure s3 image store: %w", err)
		}
		imageStore = s3Store
	default:
		imageStore = images.NewFS(cfg.Images.Dir, cfg.Images.URLPrefix)
	}
	slog.Info("image store ready", "driver", imageStore.Driver())

	server := web.NewServer(cfg, web.Deps{
		Service:  service,
		Images:   imageStore,
		Limiter:  images.NewLimiter(cfg.Images.MaxConcurrent, cfg.Images.UploadWait),
		Metrics:  rec,
		AuditLog: auditLog,
	})

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		stop()
		<-done
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}
