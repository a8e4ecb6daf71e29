package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz is returned when a quiz has no questions; loading it into a
	// session is a precondition violation, not an empty session.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrNoSelection is returned by Advance when no option has been staged.
	ErrNoSelection = errors.New("no option selected")
	// ErrAttemptNotFound is returned when an attempt ID is unknown or expired.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptCompleted rejects mutations on a terminal session.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrAttemptInProgress rejects reading results before completion.
	ErrAttemptInProgress = errors.New("attempt still in progress")
	// ErrAnswerNotInOptions flags a question whose correct answer is not one of its options.
	ErrAnswerNotInOptions = errors.New("correct answer not among options")

	// ErrNotFound is the generic catalog miss for classes, questions, papers and users.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden is returned when a role is not allowed to perform an operation.
	ErrForbidden = errors.New("forbidden")
)
