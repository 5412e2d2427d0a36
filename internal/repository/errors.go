package repository

import "errors"

// Domain errors surfaced to callers. The participation messages are part of
// the public API contract and are rendered verbatim in error responses.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrLessonNotFound is returned when the lesson does not exist.
	ErrLessonNotFound = errors.New("Lesson does not exist.")

	// ErrAlreadyParticipated is returned when the mentee already holds an
	// enrollment in the lesson.
	ErrAlreadyParticipated = errors.New("Already participated.")

	// ErrLessonOverdue is returned when the lesson has already started.
	ErrLessonOverdue = errors.New("Lesson overdue.")

	// ErrLessonOvercrowded is returned when the lesson has no open slots.
	ErrLessonOvercrowded = errors.New("Lesson overcrowded.")

	// ErrNotParticipated is returned when cancelling without an enrollment.
	ErrNotParticipated = errors.New("Not participated.")

	// ErrCancelOverdue is returned when the cancellation deadline has passed.
	ErrCancelOverdue = errors.New("Cancel overdue.")
)
