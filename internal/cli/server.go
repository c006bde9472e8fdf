package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/auth"
	"learning-progress-service/internal/config"
	"learning-progress-service/internal/infra/memory"
	"learning-progress-service/internal/infra/postgres"
	redisinfra "learning-progress-service/internal/infra/redis"
	"learning-progress-service/internal/logging"
	"learning-progress-service/internal/metrics"
	"learning-progress-service/internal/storage"
	transport "learning-progress-service/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const devJWTSecret = "dev-only-secret"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

// jwtSecret refuses to run a persistent deployment without a configured secret.
func jwtSecret(cfg config.Config) (string, error) {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}
	if cfg.Postgres.URL != "" {
		return "", errors.New("jwt secret not configured")
	}
	return devJWTSecret, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}
	if secret == devJWTSecret {
		logger.Warn("JWT_SECRET not set; using development secret")
	}

	var store app.Store
	var loader memory.QuizLoader
	if cfg.Postgres.URL != "" {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrateDB(ctx, db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect catalog pool: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(db)
		loader = postgres.NewCatalogLoader(pool)
	} else {
		logger.Warn("postgres not configured; using in-memory store with sample data")
		memStore := memory.NewStore()
		memStore.SeedChallenges(sampleChallenges()...)
		store = memStore
		loader = memory.NewStaticQuizLoader(sampleQuizzes()...)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		catalog app.QuizCatalog
		ledger  app.PointsLedger
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed; cache reads will fall back to the catalog", zap.Error(err))
		}
		catalog = redisinfra.NewQuizCatalog(redisClient, loader, quizTTL, logger)
		ledger = redisinfra.NewLedger(redisClient)
	} else {
		catalog = memory.NewQuizCatalog(loader, quizTTL)
		ledger = memory.NewLedger()
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithLedger(ledger),
		app.WithDefaultPassPercentage(cfg.Scoring.DefaultPassPercentage),
		app.WithCompletionScore(cfg.Scoring.CompletionScore),
	}
	quizzes := app.NewQuizService(store, catalog, opts...)
	challenges := app.NewChallengeService(store, opts...)

	var media transport.EvidencePresigner
	if cfg.Storage.Bucket != "" {
		evidence, err := storage.NewEvidenceMedia(ctx, storage.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PresignExpiry:   config.TTLDuration(cfg.Storage.PresignExpiry, 15*time.Minute),
		}, logger)
		if err != nil {
			return err
		}
		media = evidence
	} else {
		logger.Info("evidence storage not configured; upload URLs disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		Handler:        transport.NewHandler(quizzes, challenges, media, logger),
		Stream:         transport.NewAttemptStream(quizzes, logger),
		JWT:            auth.NewJWTService(secret, cfg.Auth.ExpireHours),
		Metrics:        m,
		Gatherer:       registry,
		Logger:         logger,
		AllowedOrigins: config.SplitOrigins(cfg.Server.CORSAllowedOrigins),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		logger.Info("starting learning progress service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
