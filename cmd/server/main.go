package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sifan077/GateLink/config"
	appmodel "github.com/sifan077/GateLink/internal/app/model"
	apprepository "github.com/sifan077/GateLink/internal/app/repository"
	"github.com/sifan077/GateLink/internal/app/resolver"
	"github.com/sifan077/GateLink/internal/app/secret"
	appserver "github.com/sifan077/GateLink/internal/app/server"
	appservice "github.com/sifan077/GateLink/internal/app/service"
	"github.com/sifan077/GateLink/internal/app/token"
	inthttp "github.com/sifan077/GateLink/internal/http/handler"
	"github.com/sifan077/GateLink/internal/http/middleware"
	"github.com/sifan077/GateLink/internal/infra/logger"
	infraNATS "github.com/sifan077/GateLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/GateLink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/GateLink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/GateLink/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := logger.FromEnv("gatelink")
	log, err := logger.New(logCfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync(log) }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.Duration("resolve_timeout", cfg.Links.ResolveTimeout),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, appmodel.Models()...); err != nil {
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

	natsConn, js, err := infraNATS.Connect(cfg.NATS, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if err := appservice.EnsureLinkEventStream(js); err != nil {
		log.Fatal("Failed to set up link event stream", zap.Error(err))
	}

	metrics := infraPrometheus.NewMetrics()
	if !logCfg.Development {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, metrics)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
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
	eventRepo := apprepository.NewLinkEventRepository(gormDB)

	tokens := token.NewGenerator(token.Options{
		Length:        cfg.Links.TokenLength,
		ExpectedLinks: cfg.Links.ExpectedLinks,
		FalsePositive: cfg.Links.FalsePositiveMax,
	})
	if err := tokens.Warm(ctx, linkRepo.EachToken); err != nil {
		log.Warn("Failed to warm token filter", zap.Error(err))
	}

	passwords := secret.NewBcrypt(0)

	engine := resolver.New(resolver.Deps{
		Store:     linkRepo,
		Passwords: passwords,
		Logger:    log.Named("resolver"),
		Recorder:  metrics,
		Timeout:   cfg.Links.ResolveTimeout,
	})

	linkService := appservice.NewLinkService(appservice.Deps{
		Links:       linkRepo,
		Tokens:      tokens,
		Passwords:   passwords,
		Events:      appservice.NewLinkEventPublisher(js),
		Audit:       eventRepo,
		Logger:      log.Named("links"),
		MaxAttempts: cfg.Links.CreateAttempts,
	})

	consumer := appservice.NewLinkEventConsumer(js, log.Named("audit"), eventRepo)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("Failed to start link event consumer", zap.Error(err))
	}

	pruner := appservice.NewLinkEventPruner(log.Named("audit"), eventRepo, cfg.Links.AuditRetention)
	pruner.Start()
	defer pruner.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Redis:       redisClient,
		Resolver:    engine,
		LinkService: linkService,
		Destinations: inthttp.Destinations{
			Expired:          cfg.Server.ExpiredURL,
			NotYetAvailable:  cfg.Server.NotYetAvailableURL,
			PasswordRequired: cfg.Server.PasswordRequiredURL,
		},
		Checks: map[string]inthttp.Check{
			"postgres": pool.Ping,
			"redis":    infraRedis.Ping(redisClient),
		},
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			MaxRequests: cfg.Links.RateLimitMax,
			Window:      cfg.Links.RateLimitWindow,
			KeyPrefix:   middleware.DefaultRateLimitConfig().KeyPrefix,
		},
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down HTTP server", zap.Error(err))
		}
	}()

	log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}
