package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/config"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	pgstore "classquiz-service/internal/infra/postgres"
	redisstore "classquiz-service/internal/infra/redis"
	transport "classquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Catalog: Postgres in production, seeded memory in demo mode.
	var catalog app.CatalogStore
	var loader memory.QuizLoader
	if pool != nil {
		catalog = pgstore.NewCatalogStore(pool)
		loader = pgstore.NewQuizLoader(pool)
	} else {
		mem := memory.NewCatalogStore()
		seedDemoCatalog(ctx, mem)
		catalog = mem
		loader = mem
		log.Printf("no postgres configured, running with an in-memory demo catalog")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes transport.QuizSource
	if redisClient != nil {
		quizzes = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	attemptTTL := config.TTLDuration(cfg.Attempt.TTL, time.Hour)
	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisstore.NewAttemptStore(redisClient, attemptTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	service := app.NewAttemptService(attempts, quizzes, catalog)
	tokens := auth.NewTokenService(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	api := transport.NewAPI(catalog, quizzes, tokens)
	wsHandler := transport.NewWSHandler(service, tokens)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(cfg.Server.AllowedOrigins, wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting classquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoCatalog loads a small fixed data set so the service is usable
// without a database: one teacher, one student, and a short timed quiz.
func seedDemoCatalog(ctx context.Context, catalog *memory.CatalogStore) {
	teacherHash, _ := auth.HashPassword("teacher123")
	studentHash, _ := auth.HashPassword("student123")
	teacher, err := catalog.CreateUser(ctx, domain.User{
		ID: "teacher-1", Name: "Demo Teacher", Email: "teacher@example.com",
		Password: teacherHash, Role: domain.RoleTeacher,
	})
	if err != nil {
		log.Printf("seed teacher: %v", err)
	}
	if _, err := catalog.CreateUser(ctx, domain.User{
		ID: "student-1", Name: "Demo Student", Email: "student@example.com",
		Password: studentHash, Role: domain.RoleStudent,
	}); err != nil {
		log.Printf("seed student: %v", err)
	}

	questions := []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: "q2", Text: "What is the capital of France?", Options: []string{"Paris", "London", "Berlin"}, CorrectAnswer: "Paris"},
		{ID: "q3", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectAnswer: "Mars"},
	}
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		q.TeacherID = teacher.ID
		if _, err := catalog.CreateQuestion(ctx, q); err != nil {
			log.Printf("seed question %s: %v", q.ID, err)
			continue
		}
		ids = append(ids, q.ID)
	}
	if _, err := catalog.CreateQuiz(ctx, domain.Quiz{
		ID: "quiz-1", Name: "Demo Quiz", TeacherID: teacher.ID, DurationSeconds: 120,
	}, ids); err != nil {
		log.Printf("seed quiz: %v", err)
	}
}
