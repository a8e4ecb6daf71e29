package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
)

const defaultPageSize = 10

type createClassRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (a *API) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if !a.decode(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	class, err := a.catalog.CreateClass(r.Context(), domain.Class{
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   claims.Subject,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, class)
}

func (a *API) handleListClasses(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	teacherID := r.URL.Query().Get("teacherId")
	if domain.Role(claims.Role) == domain.RoleTeacher {
		teacherID = claims.Subject
	}
	page, err := a.catalog.ListClasses(r.Context(), teacherID, r.URL.Query().Get("cursor"), queryInt(r, "limit", defaultPageSize))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := a.catalog.DeleteClass(r.Context(), chi.URLParam(r, "id"), ownerID(claims)); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enrollRequest struct {
	StudentID string `json:"studentId"`
}

func (a *API) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	// A body is optional: a student following a class join link sends none
	// and enrolls themself.
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if req.StudentID == "" {
		req.StudentID = claims.Subject
	}
	if domain.Role(claims.Role) == domain.RoleStudent && req.StudentID != claims.Subject {
		respondErr(w, domain.ErrForbidden)
		return
	}
	enrollment, err := a.catalog.EnrollStudent(r.Context(), chi.URLParam(r, "id"), req.StudentID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

func (a *API) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := a.catalog.ListEnrollments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

type questionRequest struct {
	Type          string   `json:"type"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
}

func (a *API) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !a.decode(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	q := domain.Question{
		TeacherID:     claims.Subject,
		Type:          req.Type,
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
	}
	if err := q.Validate(); err != nil {
		respondErr(w, err)
		return
	}
	created, err := a.catalog.CreateQuestion(r.Context(), q)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	page, err := a.catalog.ListQuestions(r.Context(), claims.Subject, queryInt(r, "page", 1), queryInt(r, "pageSize", defaultPageSize))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !a.decode(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	q := domain.Question{
		ID:            chi.URLParam(r, "id"),
		TeacherID:     ownerID(claims),
		Type:          req.Type,
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
	}
	if err := q.Validate(); err != nil {
		respondErr(w, err)
		return
	}
	updated, err := a.catalog.UpdateQuestion(r.Context(), q)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := a.catalog.DeleteQuestion(r.Context(), chi.URLParam(r, "id"), ownerID(claims)); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createQuizRequest struct {
	Name            string   `json:"name" validate:"required"`
	ClassID         string   `json:"classId"`
	DurationSeconds int      `json:"durationSeconds" validate:"gte=0"`
	QuestionIDs     []string `json:"questionIds" validate:"required,min=1"`
}

func (a *API) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !a.decode(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	quiz, err := a.catalog.CreateQuiz(r.Context(), domain.Quiz{
		Name:            req.Name,
		ClassID:         req.ClassID,
		TeacherID:       claims.Subject,
		DurationSeconds: req.DurationSeconds,
	}, req.QuestionIDs)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	filter := app.QuizFilter{ClassID: r.URL.Query().Get("classId")}
	if domain.Role(claims.Role) == domain.RoleTeacher {
		filter.TeacherID = claims.Subject
	}
	page, err := a.catalog.ListQuizzes(r.Context(), filter, queryInt(r, "page", 1), queryInt(r, "pageSize", defaultPageSize))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.quizzes.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	quizID := chi.URLParam(r, "id")
	if err := a.catalog.DeleteQuiz(r.Context(), quizID, ownerID(claims)); err != nil {
		respondErr(w, err)
		return
	}
	// Attempts started after this point must not load the deleted quiz from cache.
	a.quizzes.Invalidate(r.Context(), quizID)
	w.WriteHeader(http.StatusNoContent)
}

type createPaperRequest struct {
	Title       string                 `json:"title" validate:"required"`
	ClassID     string                 `json:"classId" validate:"required"`
	Duration    int                    `json:"durationMinutes" validate:"gte=0"`
	ScheduledAt *time.Time             `json:"scheduledAt"`
	Questions   []paperQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

type paperQuestionRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Marks      int    `json:"marks" validate:"gte=0"`
}

func (a *API) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if !a.decode(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	questions := make([]domain.PaperQuestion, len(req.Questions))
	for i, pq := range req.Questions {
		questions[i] = domain.PaperQuestion{QuestionID: pq.QuestionID, Marks: pq.Marks, Position: i}
	}
	paper, err := a.catalog.CreatePaper(r.Context(), domain.Paper{
		Title:       req.Title,
		ClassID:     req.ClassID,
		TeacherID:   claims.Subject,
		Duration:    req.Duration,
		ScheduledAt: req.ScheduledAt,
		Questions:   questions,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paper)
}

func (a *API) handleListPapers(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	filter := app.PaperFilter{
		ClassID: r.URL.Query().Get("classId"),
		Cursor:  r.URL.Query().Get("cursor"),
		Limit:   queryInt(r, "limit", defaultPageSize),
	}
	if domain.Role(claims.Role) == domain.RoleTeacher {
		filter.TeacherID = claims.Subject
	}
	page, err := a.catalog.ListPapers(r.Context(), filter)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := a.catalog.GetPaper(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (a *API) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := a.catalog.DeletePaper(r.Context(), chi.URLParam(r, "id"), ownerID(claims)); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListResults(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	// Students only ever see their own history.
	if domain.Role(claims.Role) == domain.RoleStudent {
		studentID = claims.Subject
	}
	results, err := a.catalog.ListResults(r.Context(), quizID, studentID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ownerID is empty for admins, which skips ownership checks in the store.
func ownerID(claims *auth.Claims) string {
	if domain.Role(claims.Role) == domain.RoleAdmin {
		return ""
	}
	return claims.Subject
}
