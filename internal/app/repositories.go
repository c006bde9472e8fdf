package app

import (
	"context"
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

// QuizCatalog loads quiz content (from cache/backing store). Questions are returned
// in display order with their options. A missing quiz yields domain.ErrQuizNotFound.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error)
}

// CatalogInvalidator is implemented by caching catalogs that can drop one quiz.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, quizID uuid.UUID) error
}

// PointsLedger keeps the per-user points leaderboard. It is derived data and
// is written after the owning transaction commits.
type PointsLedger interface {
	Award(ctx context.Context, userID uuid.UUID, points int) error
	Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// Store runs a unit of work. Implementations must make fn atomic: either every
// write inside it is visible afterwards or none is.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Sessions() SessionRepository
	Answers() AnswerRepository
	Challenges() ChallengeRepository
	Enrollments() EnrollmentRepository
	Submissions() SubmissionRepository
	TutorSubmissions() TutorSubmissionRepository
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.QuizSession) error
	Get(ctx context.Context, id uuid.UUID) (domain.QuizSession, error)
	// GetForUpdate reads the session and holds it exclusively until the unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.QuizSession, error)
	GetByToken(ctx context.Context, token string) (domain.QuizSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.QuizSession, error)
	Update(ctx context.Context, session *domain.QuizSession) error
}

type AnswerRepository interface {
	// Create fails with domain.ErrAlreadyAnswered when (session, question) already has an answer.
	Create(ctx context.Context, answer *domain.QuizAnswer) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.QuizAnswer, error)
}

type ChallengeRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Challenge, error)
	// IncrementParticipants atomically bumps currentParticipants, failing with
	// domain.ErrChallengeFull when the cap is already reached.
	IncrementParticipants(ctx context.Context, id uuid.UUID) error
}

type EnrollmentRepository interface {
	// Create fails with domain.ErrAlreadyJoined when (user, challenge) is already enrolled.
	Create(ctx context.Context, enrollment *domain.UserChallenge) error
	Get(ctx context.Context, id uuid.UUID) (domain.UserChallenge, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.UserChallenge, error)
	FindByUserAndChallenge(ctx context.Context, userID, challengeID uuid.UUID) (domain.UserChallenge, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserChallenge, error)
	IncrementEvidence(ctx context.Context, id uuid.UUID) error
	// MarkStarted moves a joined enrollment to in_progress; other states are left untouched.
	MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error
	AddPoints(ctx context.Context, id uuid.UUID, points int, bonus bool) error
	SetProgress(ctx context.Context, id uuid.UUID, percentage float64) error
	Complete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type SubmissionRepository interface {
	// Create fails with domain.ErrDuplicateSubmissionNumber when the number is taken.
	Create(ctx context.Context, submission *domain.ChallengeSubmission) error
	Get(ctx context.Context, id uuid.UUID) (domain.ChallengeSubmission, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.ChallengeSubmission, error)
	CountByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int, error)
	ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]domain.ChallengeSubmission, error)
	ListPending(ctx context.Context) ([]domain.ChallengeSubmission, error)
	Validate(ctx context.Context, id uuid.UUID, v domain.Validation) (domain.ChallengeSubmission, error)
}

type TutorSubmissionRepository interface {
	Create(ctx context.Context, ts *domain.TutorSubmission) error
	ListByMinor(ctx context.Context, minorUserID uuid.UUID) ([]domain.TutorSubmission, error)
}
