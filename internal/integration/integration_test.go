package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
	"trivia-live/internal/infra/postgres"
	pgmigrations "trivia-live/internal/infra/postgres/migrations"
	infraredis "trivia-live/internal/infra/redis"
)

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestionSet(t, ctx, pgURL, "capitals", sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewQuestionLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute, nil)
	store := infraredis.NewSessionStore(redisClient, 5*time.Minute, nil)
	service := app.NewService(store, questions, app.WithTimerOptions(app.WithTickInterval(20*time.Millisecond)))
	defer service.Close()

	session, err := service.CreateSession(ctx, domain.RoleQuizmaster, 2)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := service.LoadQuestionSet(ctx, domain.RoleQuizmaster, session.ID, "capitals"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	owls, err := service.Join(ctx, session.ID, "Owls")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	events, cancel, err := service.Subscribe(ctx, session.ID, domain.EventSession)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ctrl, err := service.Controller(ctx, session.ID)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if err := ctrl.StartTimer(ctx, domain.RoleQuizmaster); err != nil {
		t.Fatalf("start timer: %v", err)
	}

	selected := false
	deadline := time.After(10 * time.Second)
	var rec *domain.AnswerRecord
	for rec == nil {
		select {
		case ev := <-events:
			rec, err = owls.Observe(ctx, ev)
			if err != nil {
				t.Fatalf("observe: %v", err)
			}
			if !selected && ev.Session.TimerActive {
				if err := owls.Select([]int{1}); err != nil {
					t.Fatalf("select: %v", err)
				}
				selected = true
			}
		case <-deadline:
			t.Fatalf("countdown never reached zero")
		}
	}
	if !rec.Correct || rec.Points != app.DefaultPoints {
		t.Fatalf("expected correct auto-submitted answer, got %+v", rec)
	}

	standings, err := service.Standings(ctx, session.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 1 || standings[0].Team != "Owls" || standings[0].Points != 10 {
		t.Fatalf("expected Owls leading with 10, got %+v", standings)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "trivia"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/trivia?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestionSet(t *testing.T, ctx context.Context, dsn, id string, questions []domain.Question) {
	db := postgres.OpenDB(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := postgres.NewQuestionStore(db).SaveQuestionSet(ctx, id, "Capitals", questions); err != nil {
		t.Fatalf("save question set: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Question:      "Capital of France?",
			Answers:       []string{"Paris", "Rome", "Berlin"},
			AnswersOrder:  []int{2, 0, 1},
			Type:          domain.SingleChoice,
			CorrectAnswer: 0,
		},
		{
			Question:      "Capital of Italy?",
			Answers:       []string{"Paris", "Rome"},
			AnswersOrder:  []int{1, 0},
			Type:          domain.SingleChoice,
			CorrectAnswer: 1,
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
