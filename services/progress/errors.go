package progress

import "errors"

var (
	// ErrNotEnrolled is returned when a lesson completion is recorded for a
	// user without an active enrollment in the course.
	ErrNotEnrolled = errors.New("user is not enrolled in this course")

	// ErrLessonNotInCourse is returned when the lesson does not belong to the
	// course the completion was recorded against.
	ErrLessonNotInCourse = errors.New("lesson does not belong to this course")

	// ErrEnrollmentNotFound is returned by a recompute for a missing enrollment row.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrConcurrencyConflict is returned after the bounded internal retries on
	// a recompute transaction are exhausted. Callers may retry the whole call.
	ErrConcurrencyConflict = errors.New("progress recompute lost a concurrent race")

	// ErrCertificateCodeSpace is returned when certificate code generation
	// keeps colliding past the configured attempt bound. Not retried further.
	ErrCertificateCodeSpace = errors.New("certificate code generation attempts exhausted")
)
