package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clipvault/clipvault/config"
	appmodel "github.com/clipvault/clipvault/internal/app/model"
	apprepository "github.com/clipvault/clipvault/internal/app/repository"
	appserver "github.com/clipvault/clipvault/internal/app/server"
	appservice "github.com/clipvault/clipvault/internal/app/service"
	"github.com/clipvault/clipvault/internal/infra/logger"
	infraNATS "github.com/clipvault/clipvault/internal/infra/nats"
	infraPostgres "github.com/clipvault/clipvault/internal/infra/postgres"
	infraPrometheus "github.com/clipvault/clipvault/internal/infra/prometheus"
	infraRedis "github.com/clipvault/clipvault/internal/infra/redis"
	"github.com/clipvault/clipvault/internal/infra/storage"
	"github.com/clipvault/clipvault/internal/media"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
		Service:     "clipvault",
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_dir", cfg.Storage.Dir),
		zap.Int64("max_upload_bytes", cfg.Storage.MaxUploadBytes),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Video{},
		&appmodel.SharedLink{},
		&appmodel.LifecycleEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	store, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		log.Fatal("Failed to prepare storage directory", zap.Error(err))
	}

	videoRepo := apprepository.NewVideoRepository(gormDB)
	linkRepo := apprepository.NewSharedLinkRepository(gormDB)
	eventRepo := apprepository.NewLifecycleEventRepository(gormDB)

	reporter := appservice.NewExpiryReporter(log, linkRepo)
	reporter.Start()
	defer reporter.Stop()

	deps := appservice.Deps{
		Logger: log,
		Videos: videoRepo,
		Links:  linkRepo,
		Store:  store,
		Engine: media.NewFFmpeg(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath),
		Cache:  redisClient,
		Limits: appservice.Limits{
			MaxUploadBytes:        cfg.Storage.MaxUploadBytes,
			MinDurationSec:        cfg.Storage.MinDurationSec,
			MaxDurationSec:        cfg.Storage.MaxDurationSec,
			DefaultShareExpirySec: cfg.Storage.DefaultShareExpirySec,
		},
		MaxConcurrentTranscodes: cfg.Storage.MaxConcurrentTranscodes,
	}
	if js != nil {
		deps.Events = appservice.NewLifecyclePublisher(js)

		consumer := appservice.NewLifecycleConsumer(js, log, eventRepo)
		if err := consumer.Start(ctx); err != nil {
			log.Error("Failed to start lifecycle consumer", zap.Error(err))
		}
	}
	videos := appservice.NewVideoService(deps)

	if err := videos.WarmLinkFilter(ctx); err != nil {
		log.Error("Failed to warm shared link filter", zap.Error(err))
	}

	srv := appserver.New(appserver.Dependencies{
		Logger:    log,
		Postgres:  pool,
		Redis:     redisClient,
		NATS:      natsConn,
		JetStream: js,
		Videos:    videos,
		APITokens: cfg.Auth.Tokens,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		return srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
	})

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		g.Go(func() error {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return promServer.Close()
		})
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Server exited", zap.Error(err))
	}
	log.Info("Server stopped")
}
