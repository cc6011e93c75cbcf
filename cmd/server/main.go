package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/zxdlabs/shortlink/config"
	appmodel "github.com/zxdlabs/shortlink/internal/app/model"
	apprepository "github.com/zxdlabs/shortlink/internal/app/repository"
	appserver "github.com/zxdlabs/shortlink/internal/app/server"
	appservice "github.com/zxdlabs/shortlink/internal/app/service"
	"github.com/zxdlabs/shortlink/internal/infra/logger"
	infraNATS "github.com/zxdlabs/shortlink/internal/infra/nats"
	infraPostgres "github.com/zxdlabs/shortlink/internal/infra/postgres"
	infraPrometheus "github.com/zxdlabs/shortlink/internal/infra/prometheus"
	infraRedis "github.com/zxdlabs/shortlink/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("domain", cfg.ShortLinkDomain()),
		zap.String("listen_addr", cfg.App.ListenAddr),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
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

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.Activity{}); err != nil {
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

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	activityRepo := apprepository.NewActivityRepository(gormDB)
	analyticsRepo := apprepository.NewAnalyticsRepository(pool)

	linkService := appservice.NewLinkService(linkRepo, activityRepo, appservice.LinkServiceConfig{
		Domain:          cfg.ShortLinkDomain(),
		CodeLength:      cfg.App.CodeLength,
		MaxCodeAttempts: cfg.App.MaxCodeAttempts,
	})
	analytics := appservice.NewAnalyticsService(analyticsRepo)
	recorder := appservice.NewRecorder(log, activityRepo)
	publisher := appservice.NewClickPublisher(js)

	consumer := appservice.NewClickConsumer(js, log, recorder)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}
	defer consumer.Stop()

	resolver := appservice.NewResolver(log, linkService, recorder, publisher)

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Postgres:    pool,
		Redis:       redisClient,
		LinkService: linkService,
		Analytics:   analytics,
		Resolver:    resolver,
	})

	if err := server.Listen(cfg.App.ListenAddr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
