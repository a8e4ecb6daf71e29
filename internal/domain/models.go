package domain

import (
	"strings"
	"time"
)

// Role is the access level attached to a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User is an account in the catalog. Password holds the bcrypt hash, never plaintext.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	Role           Role      `json:"role"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Class groups students under a teacher.
type Class struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TeacherID   string    `json:"teacherId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"classId"`
	StudentID  string    `json:"studentId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// Question is a bank entry owned by a teacher. Options is empty for free-text
// questions; otherwise CorrectAnswer matches one option case-insensitively.
type Question struct {
	ID            string   `json:"id"`
	TeacherID     string   `json:"teacherId,omitempty"`
	Type          string   `json:"type,omitempty"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Validate checks the option/answer consistency invariant.
func (q Question) Validate() error {
	if len(q.Options) == 0 {
		return nil
	}
	for _, opt := range q.Options {
		if strings.EqualFold(opt, q.CorrectAnswer) {
			return nil
		}
	}
	return ErrAnswerNotInOptions
}

// Quiz is an ordered question set with an optional time limit.
// DurationSeconds == 0 means untimed. Immutable once a session loads it.
type Quiz struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ClassID         string     `json:"classId,omitempty"`
	TeacherID       string     `json:"teacherId,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	Questions       []Question `json:"questions"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Duration returns the time limit, zero for untimed quizzes.
func (q Quiz) Duration() time.Duration {
	if q.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(q.DurationSeconds) * time.Second
}

// Response records the outcome for a single visited question.
// Answered == false is the no-answer marker for skipped or timed-out questions;
// it is distinct from an empty Selected string.
type Response struct {
	QuestionID string `json:"questionId"`
	Selected   string `json:"selected"`
	Answered   bool   `json:"answered"`
}

// NoAnswer builds the skipped/timed-out response for a question.
func NoAnswer(questionID string) Response {
	return Response{QuestionID: questionID}
}

// Respondent identifies the viewer taking a quiz. Scored marks whether the
// outcome is persisted (students) or discarded after display (teacher preview).
type Respondent struct {
	UserID string
	Name   string
	Scored bool
}

// QuizResult is the persisted outcome of a completed attempt.
type QuizResult struct {
	ID        string    `json:"id,omitempty"`
	QuizID    string    `json:"quizId"`
	StudentID string    `json:"studentId"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// PaperQuestion is a question placed on a paper with its mark weight.
type PaperQuestion struct {
	QuestionID string `json:"questionId"`
	Marks      int    `json:"marks"`
	Position   int    `json:"position"`
}

// Paper is a printable exam sheet assembled from the question bank.
type Paper struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	ClassID     string          `json:"classId"`
	TeacherID   string          `json:"teacherId"`
	Duration    int             `json:"durationMinutes"`
	ScheduledAt *time.Time      `json:"scheduledAt,omitempty"`
	Questions   []PaperQuestion `json:"questions"`
	CreatedAt   time.Time       `json:"createdAt"`
}
