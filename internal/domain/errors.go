package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engines wraps exactly one of these,
// so callers can branch with errors.Is without knowing the specific cause.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidState     = errors.New("invalid state")
	ErrValidation       = errors.New("validation failed")
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question ID is invalid for the session's quiz.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = fmt.Errorf("quiz session %w", ErrNotFound)
	// ErrChallengeNotFound is returned when a challenge does not exist.
	ErrChallengeNotFound = fmt.Errorf("challenge %w", ErrNotFound)
	// ErrEnrollmentNotFound is returned when a user challenge does not exist.
	ErrEnrollmentNotFound = fmt.Errorf("user challenge %w", ErrNotFound)
	// ErrSubmissionNotFound is returned when a challenge submission does not exist.
	ErrSubmissionNotFound = fmt.Errorf("challenge submission %w", ErrNotFound)

	// ErrNotSessionOwner guards against answers or reads by another principal.
	ErrNotSessionOwner = fmt.Errorf("user does not own quiz session: %w", ErrForbidden)
	// ErrNotEnrollmentOwner guards evidence submitted against someone else's enrollment.
	ErrNotEnrollmentOwner = fmt.Errorf("user does not own challenge enrollment: %w", ErrForbidden)

	// ErrAlreadyJoined is returned on a second join for the same (user, challenge).
	ErrAlreadyJoined = fmt.Errorf("user already joined challenge: %w", ErrConflict)
	// ErrAlreadyAnswered is returned on a second answer for the same (session, question).
	ErrAlreadyAnswered = fmt.Errorf("question already answered in session: %w", ErrConflict)
	// ErrDuplicateSubmissionNumber signals a lost race on evidence sequencing.
	ErrDuplicateSubmissionNumber = fmt.Errorf("submission number already taken: %w", ErrConflict)

	// ErrChallengeFull is returned when maxParticipants has been reached.
	ErrChallengeFull = fmt.Errorf("challenge has reached maximum participants: %w", ErrCapacityExceeded)

	// ErrSessionNotActive is returned when answering a completed session.
	ErrSessionNotActive = fmt.Errorf("quiz session is not active: %w", ErrInvalidState)
	// ErrQuizHasNoQuestions is returned when starting a quiz without questions.
	ErrQuizHasNoQuestions = fmt.Errorf("quiz has no questions: %w", ErrInvalidState)
	// ErrSubmissionValidated is returned when validating a submission twice.
	ErrSubmissionValidated = fmt.Errorf("submission already validated: %w", ErrInvalidState)

	// ErrScoreOutOfRange is returned for validation scores outside 0..100.
	ErrScoreOutOfRange = fmt.Errorf("validation score must be within 0..100: %w", ErrValidation)
	// ErrEmptyAnswer is returned when neither an option nor a text answer is supplied.
	ErrEmptyAnswer = fmt.Errorf("answer requires a selected option or text: %w", ErrValidation)
	// ErrAmbiguousAnswer is returned when both an option and a text answer are supplied.
	ErrAmbiguousAnswer = fmt.Errorf("answer must carry either a selected option or text, not both: %w", ErrValidation)
	// ErrInvalidID is returned when an identifier cannot be parsed.
	ErrInvalidID = fmt.Errorf("malformed identifier: %w", ErrValidation)
)
