package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
)

// QuizSource serves quiz content for attempts and drops cached entries after
// catalog writes so new attempts never see a stale question set.
type QuizSource interface {
	app.QuizRepository
	Invalidate(ctx context.Context, quizID string)
}

// API is the REST surface over the catalog: accounts, classes, the question
// bank, quizzes, papers and recorded results.
type API struct {
	catalog  app.CatalogStore
	quizzes  QuizSource
	tokens   *auth.TokenService
	validate *validator.Validate
}

func NewAPI(catalog app.CatalogStore, quizzes QuizSource, tokens *auth.TokenService) *API {
	return &API{
		catalog:  catalog,
		quizzes:  quizzes,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// Router builds the full HTTP surface, the attempt websocket included.
func (a *API) Router(allowedOrigins []string, ws *WSHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Use(middleware.Timeout(30 * time.Second))
		ar.Post("/register", a.handleRegister)
		ar.Post("/login", a.handleLogin)
		ar.With(auth.Middleware(a.tokens)).Get("/verify", a.handleVerify)
	})

	r.Group(func(pr chi.Router) {
		// The attempt websocket lives outside this group: its connections
		// outlive any sane request timeout.
		pr.Use(middleware.Timeout(30 * time.Second))
		pr.Use(auth.Middleware(a.tokens))

		teacherOnly := auth.RequireRole(domain.RoleTeacher, domain.RoleAdmin)

		pr.Route("/api/classes", func(cr chi.Router) {
			cr.With(teacherOnly).Post("/", a.handleCreateClass)
			cr.Get("/", a.handleListClasses)
			cr.With(teacherOnly).Delete("/{id}", a.handleDeleteClass)
			// Students join via a shared class link, so enroll is open to all
			// roles; the handler limits students to enrolling themselves.
			cr.Post("/{id}/enroll", a.handleEnrollStudent)
			cr.Get("/{id}/students", a.handleListEnrollments)
		})

		pr.Route("/api/questions", func(qr chi.Router) {
			qr.Use(teacherOnly)
			qr.Post("/", a.handleCreateQuestion)
			qr.Get("/", a.handleListQuestions)
			qr.Put("/{id}", a.handleUpdateQuestion)
			qr.Delete("/{id}", a.handleDeleteQuestion)
		})

		pr.Route("/api/quizzes", func(qr chi.Router) {
			qr.With(teacherOnly).Post("/", a.handleCreateQuiz)
			qr.Get("/", a.handleListQuizzes)
			// Full quiz content carries the answer key, so it stays teacher-only;
			// students take quizzes over the websocket.
			qr.With(teacherOnly).Get("/{id}", a.handleGetQuiz)
			qr.With(teacherOnly).Delete("/{id}", a.handleDeleteQuiz)
		})

		pr.Route("/api/papers", func(ppr chi.Router) {
			ppr.With(teacherOnly).Post("/", a.handleCreatePaper)
			ppr.Get("/", a.handleListPapers)
			ppr.Get("/{id}", a.handleGetPaper)
			ppr.With(teacherOnly).Delete("/{id}", a.handleDeletePaper)
		})

		pr.Get("/api/results", a.handleListResults)
	})

	if ws != nil {
		r.Get("/ws/attempt", ws.ServeWS)
	}
	return r
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps domain sentinels onto HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrEmptyQuiz),
		errors.Is(err, domain.ErrAnswerNotInOptions):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
