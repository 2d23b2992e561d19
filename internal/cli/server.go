package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-live/internal/app"
	"trivia-live/internal/config"
	"trivia-live/internal/domain"
	"trivia-live/internal/infra/memory"
	"trivia-live/internal/infra/objectstore"
	"trivia-live/internal/infra/postgres"
	redisstore "trivia-live/internal/infra/redis"
	"trivia-live/internal/logging"
	"trivia-live/internal/metrics"
	"trivia-live/internal/quizfile"
	transport "trivia-live/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// questionCatalog is a question source that can also list its sets.
type questionCatalog interface {
	app.QuestionSource
	transport.QuestionCatalog
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var catalog questionCatalog = memory.NewStaticQuestionSource(sampleQuestionSets())
	var serviceOpts []app.ServiceOption
	handlerOpts := []transport.Option{transport.WithLogger(logger)}

	if cfg.MinIO.Endpoint != "" {
		client, err := objectstore.Connect(ctx, minioOptions(cfg), logger)
		if err != nil {
			return err
		}
		expiry := config.TTLDuration(cfg.MinIO.URLExpiry, 24*time.Hour)
		media := objectstore.NewMediaStore(client, cfg.MinIO.Bucket, expiry, logger)
		serviceOpts = append(serviceOpts, app.WithMediaResolver(media), app.WithMediaInventory(media))
		handlerOpts = append(handlerOpts, transport.WithMediaUploader(media))
		if pool == nil {
			catalog = objectstore.NewQuizLibrary(client, cfg.MinIO.Bucket, quizfile.NewParser())
		}
	}
	if pool != nil {
		catalog = postgres.NewQuestionLoader(pool)
	}
	handlerOpts = append(handlerOpts, transport.WithCatalog(catalog))

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, catalog, questionTTL, logger)
	} else {
		questions = memory.NewQuestionRepository(catalog, questionTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 6*time.Hour), logger)
	} else {
		store = memory.NewSessionStore()
	}

	var policy app.ScoringPolicy = app.FixedPoints{Points: cfg.Scoreboard.Points}
	if cfg.Scoreboard.Scoring == "partial" {
		policy = app.PartialCredit{Points: cfg.Scoreboard.Points}
	}
	collector := app.NewAnswerCollector(store, app.WithScoringPolicy(policy), app.WithCollectorLogger(logger))
	aggregator := app.NewScoreAggregator(store,
		app.WithPaging(cfg.Scoreboard.PageSize, config.TTLDuration(cfg.Scoreboard.Rotate, app.DefaultPageInterval)),
		app.WithAggregatorPolicy(policy),
		app.WithAggregatorLogger(logger))

	serviceOpts = append(serviceOpts,
		app.WithServiceLogger(logger),
		app.WithCollector(collector),
		app.WithAggregator(aggregator),
		app.WithDefaultQuestionTimer(cfg.Timer.QuestionSeconds),
	)
	service := app.NewService(store, questions, serviceOpts...)
	defer service.Close()

	mux := http.NewServeMux()
	transport.NewHandler(service, handlerOpts...).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia service", "port", finalPort, "redis", redisClient != nil, "postgres", pool != nil, "minio", cfg.MinIO.Endpoint != "")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
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

// sampleQuestionSets is the demo set served when no database or bucket is configured.
func sampleQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo": {
			{
				Question:      "What is 2 + 2?",
				Answers:       []string{"4", "3", "5"},
				AnswersOrder:  []int{1, 0, 2},
				Type:          domain.SingleChoice,
				CorrectAnswer: 0,
			},
			{
				Question:       "Which of these are primes?",
				Answers:        []string{"2", "3", "4", "9"},
				AnswersOrder:   []int{2, 0, 3, 1},
				Type:           domain.MultiChoice,
				CorrectAnswers: []int{0, 1},
			},
		},
	}
}
