package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/config"
	"oncoscan/internal/database"
	"oncoscan/internal/httpserver"
	"oncoscan/internal/inference"
	"oncoscan/internal/logger"
	"oncoscan/internal/metrics"
	"oncoscan/internal/models"
	"oncoscan/internal/pipeline"
	"oncoscan/internal/storage"
	"oncoscan/internal/users"
)

// engineOpener is set by the tflite build.
var engineOpener func(lg *zap.SugaredLogger) inference.EngineOpener

const (
	demoUsername = "doc_user"
	demoPassword = "securepass"
	demoFullName = "Dr. Alice Onco"
)

func main() {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		logger.New("info").Fatalw("invalid configuration", "error", err)
	}
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()
	defer captureStdLog(lg)()
	if cfg.InsecureSecret() {
		lg.Warnw("ONCOSCAN_SECRET_KEY is not set; using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL, lg)
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	repo := users.NewRepository(db, cfg.UserCacheTTL)
	if cfg.SeedDemoUser {
		seedDemoUser(ctx, repo, lg)
	}

	m, err := metrics.New()
	if err != nil {
		lg.Fatalw("metrics registry failed", "error", err)
	}

	uploads, err := newUploadStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatalw("upload store failed", "error", err)
	}

	factory := inference.Factory{}
	if engineOpener != nil {
		factory.Engine = engineOpener(lg)
	}
	mgr, err := inference.NewManager(ctx, factory, loader.Model, lg)
	if err != nil {
		lg.Fatalw("model load failed", "error", err)
	}
	defer mgr.Close()

	auditLog := audit.New(db)
	svc := auth.NewService(repo, auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL))

	router := httpserver.NewRouter(httpserver.Deps{
		DB:                  db,
		Auth:                svc,
		Users:               repo,
		Audit:               auditLog,
		Pipeline:            pipeline.New(mgr, uploads, auditLog, m, lg),
		Manager:             mgr,
		Metrics:             m,
		Logger:              lg,
		CORSOrigins:         cfg.CORSOrigins,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		ReloadRequiresAdmin: cfg.ReloadRequiresAdmin,
		StaticDir:           cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Infow("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorw("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnw("graceful shutdown failed", "error", err)
	}
}

// captureStdLog routes the standard library logger, which the DICOM parser
// writes to, through lg. The returned func restores the previous output.
func captureStdLog(lg *zap.SugaredLogger) func() {
	restore, err := zap.RedirectStdLogAt(lg.Desugar().Named("stdlog"), zapcore.WarnLevel)
	if err != nil {
		lg.Warnw("cannot redirect standard logger", "error", err)
		return func() {}
	}
	return restore
}

func newUploadStore(ctx context.Context, cfg config.Config, lg *zap.SugaredLogger) (storage.Store, error) {
	if cfg.S3.Bucket != "" {
		lg.Infow("storing uploads in s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.KeyPrefix)
		return storage.NewS3Store(ctx, cfg.S3)
	}
	if cfg.UploadDir == "" {
		return storage.Discard{}, nil
	}
	lg.Infow("storing uploads on disk", "dir", cfg.UploadDir)
	return storage.NewLocalStore(cfg.UploadDir)
}

func seedDemoUser(ctx context.Context, repo *users.Repository, lg *zap.SugaredLogger) {
	exists, err := repo.Exists(ctx, demoUsername)
	if err != nil {
		lg.Warnw("demo user lookup failed", "error", err)
		return
	}
	if exists {
		return
	}
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		lg.Warnw("demo user hash failed", "error", err)
		return
	}
	u := models.User{Username: demoUsername, PasswordHash: hash, FullName: demoFullName}
	if err := repo.Create(ctx, &u); err != nil && !errors.Is(err, users.ErrDuplicate) {
		lg.Warnw("demo user seed failed", "error", err)
		return
	}
	lg.Infow("seeded demo user", "username", demoUsername)
}
