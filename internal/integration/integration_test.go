package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	pgstore "classquiz-service/internal/infra/postgres"
	pgmigrations "classquiz-service/internal/infra/postgres/migrations"
	infraredis "classquiz-service/internal/infra/redis"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	catalog := pgstore.NewCatalogStore(pool)

	teacher, err := catalog.CreateUser(ctx, domain.User{
		Name: "Ms. Reed", Email: "reed@example.com", Password: "hash", Role: domain.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	student, err := catalog.CreateUser(ctx, domain.User{
		Name: "Alice", Email: "alice@example.com", Password: "hash", Role: domain.RoleStudent,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	questionIDs := make([]string, 0, 3)
	for _, q := range []domain.Question{
		{TeacherID: teacher.ID, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{TeacherID: teacher.ID, Text: "Capital of France?", Options: []string{"Paris", "London"}, CorrectAnswer: "Paris"},
		{TeacherID: teacher.ID, Text: "Red planet?", Options: []string{"Venus", "Mars"}, CorrectAnswer: "Mars"},
	} {
		created, err := catalog.CreateQuestion(ctx, q)
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		questionIDs = append(questionIDs, created.ID)
	}

	quiz, err := catalog.CreateQuiz(ctx, domain.Quiz{
		Name: "Arithmetic and geography", TeacherID: teacher.ID, DurationSeconds: 300,
	}, questionIDs)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	loader := pgstore.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	attemptStore := infraredis.NewAttemptStore(redisClient, 5*time.Minute)
	service := app.NewAttemptService(attemptStore, quizRepo, catalog)

	attemptID, session, err := service.Start(ctx, quiz.ID, domain.Respondent{
		UserID: student.ID, Name: student.Name, Scored: true,
	})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	// Answer the first two correctly (one with a case mismatch), skip the last.
	if err := service.Select(attemptID, "4"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Advance(ctx, attemptID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := service.Select(attemptID, "paris"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Advance(ctx, attemptID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	done, err := service.Skip(ctx, attemptID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !done {
		t.Fatalf("expected attempt to finish after last question")
	}

	result, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Score != 2 || result.Skipped != 1 || result.TimedOut {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Persisted {
		t.Fatalf("expected student result to be persisted")
	}

	saved, err := catalog.ListResults(ctx, quiz.ID, student.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(saved) != 1 || saved[0].Score != 2 {
		t.Fatalf("expected one performance row with score 2, got %+v", saved)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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
