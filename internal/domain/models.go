package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType selects the correctness rule for a question.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeText           QuestionType = "text"
)

// Option represents a possible answer for a question.
type Option struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	Correct     bool      `json:"correct"`
	SortOrder   int       `json:"sortOrder"`
	Explanation string    `json:"explanation,omitempty"`
}

// Question is a catalog question with its ordered options.
type Question struct {
	ID          uuid.UUID    `json:"id"`
	QuizID      uuid.UUID    `json:"quizId"`
	Prompt      string       `json:"prompt"`
	Type        QuestionType `json:"type"`
	Explanation string       `json:"explanation,omitempty"`
	Points      int          `json:"points"`
	SortOrder   int          `json:"sortOrder"`
	Options     []Option     `json:"options"`
}

// Option returns the option with the given id.
func (q Question) Option(id uuid.UUID) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// CorrectOption returns the first option flagged correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}

// Quiz is catalog metadata plus its ordered questions. It is never mutated by the engines.
type Quiz struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	PassPercentage   float64    `json:"passPercentage"`
	PointsReward     int        `json:"pointsReward"`
	Questions        []Question `json:"questions"`
}

// Question returns the question with the given id.
func (q Quiz) Question(id uuid.UUID) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// SessionStatus is the lifecycle state of a quiz attempt.
type SessionStatus string

const (
	SessionStarted   SessionStatus = "started"
	SessionCompleted SessionStatus = "completed"
)

// QuizSession is one attempt by one user at one quiz.
type QuizSession struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"userId"`
	QuizID            uuid.UUID     `json:"quizId"`
	SessionToken      string        `json:"sessionToken"`
	QuestionsTotal    int           `json:"questionsTotal"`
	QuestionsAnswered int           `json:"questionsAnswered"`
	QuestionsCorrect  int           `json:"questionsCorrect"`
	PointsEarned      int           `json:"pointsEarned"`
	PercentageScore   float64       `json:"percentageScore"`
	Status            SessionStatus `json:"status"`
	Passed            *bool         `json:"passed"`
	StartedAt         time.Time     `json:"startedAt"`
	CompletedAt       *time.Time    `json:"completedAt"`
	TimeTakenSeconds  *int          `json:"timeTakenSeconds"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Active reports whether the session still accepts answers.
func (s QuizSession) Active() bool {
	return s.Status == SessionStarted
}

// QuizAnswer is one response to one question within one session.
type QuizAnswer struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"sessionId"`
	QuestionID       uuid.UUID  `json:"questionId"`
	SelectedOptionID *uuid.UUID `json:"selectedOptionId"`
	UserAnswerText   *string    `json:"userAnswerText"`
	IsCorrect        bool       `json:"isCorrect"`
	PointsEarned     int        `json:"pointsEarned"`
	TimeTakenSeconds *int       `json:"timeTakenSeconds"`
	AnswerConfidence *int       `json:"answerConfidence"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// AnswerSubmission models the scoring signal from clients.
type AnswerSubmission struct {
	SessionID        uuid.UUID
	QuestionID       uuid.UUID
	UserID           uuid.UUID
	SelectedOptionID *uuid.UUID
	UserAnswerText   *string
	TimeTakenSeconds *int
	AnswerConfidence *int
}

// Challenge is catalog metadata for a long-lived challenge.
// Only CurrentParticipants is ever written by the participation engine.
type Challenge struct {
	ID                  uuid.UUID  `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Category            string     `json:"category,omitempty"`
	Difficulty          string     `json:"difficulty,omitempty"`
	PointsReward        int        `json:"pointsReward"`
	ValidationType      string     `json:"validationType"`
	MaxParticipants     *int       `json:"maxParticipants"`
	CurrentParticipants int        `json:"currentParticipants"`
	StartDate           *time.Time `json:"startDate,omitempty"`
	EndDate             *time.Time `json:"endDate,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Capped reports whether the challenge limits participants. A missing or
// non-positive maximum means no cap.
func (c Challenge) Capped() bool {
	return c.MaxParticipants != nil && *c.MaxParticipants > 0
}

// Full reports whether no further participants may join.
func (c Challenge) Full() bool {
	return c.Capped() && c.CurrentParticipants >= *c.MaxParticipants
}

// EnrollmentStatus is the lifecycle state of a user challenge.
type EnrollmentStatus string

const (
	EnrollmentJoined     EnrollmentStatus = "joined"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

// UserChallenge is one user's enrollment in one challenge.
type UserChallenge struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"userId"`
	ChallengeID        uuid.UUID        `json:"challengeId"`
	Status             EnrollmentStatus `json:"status"`
	ProgressPercentage float64          `json:"progressPercentage"`
	PointsEarned       int              `json:"pointsEarned"`
	BonusPoints        int              `json:"bonusPoints"`
	EvidenceCount      int              `json:"evidenceCount"`
	JoinedAt           time.Time        `json:"joinedAt"`
	StartedAt          *time.Time       `json:"startedAt"`
	CompletedAt        *time.Time       `json:"completedAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// ValidationStatus is the moderation state of a submission.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
)

// DefaultSubmissionType is used when evidence does not name its type.
const DefaultSubmissionType = "photo"

// Evidence is the opaque payload attached to a submission.
type Evidence struct {
	SubmissionType  string         `json:"submissionType"`
	ContentText     string         `json:"contentText,omitempty"`
	MediaURLs       []string       `json:"mediaUrls,omitempty"`
	LocationData    map[string]any `json:"locationData,omitempty"`
	MeasurementData map[string]any `json:"measurementData,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ChallengeSubmission is one piece of evidence against one enrollment.
type ChallengeSubmission struct {
	ID               uuid.UUID        `json:"id"`
	UserChallengeID  uuid.UUID        `json:"userChallengeId"`
	SubmissionNumber int              `json:"submissionNumber"`
	Evidence         Evidence         `json:"evidence"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	ValidationScore  *float64         `json:"validationScore"`
	ValidationNotes  *string          `json:"validationNotes"`
	ValidatedBy      *uuid.UUID       `json:"validatedBy"`
	ValidatedAt      *time.Time       `json:"validatedAt"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Validation is a moderator's verdict on a submission.
type Validation struct {
	Score       float64
	Notes       *string
	ValidatedBy uuid.UUID
	ValidatedAt time.Time
}

// TutorSubmission links a tutor-submitted evidence event to a minor and a challenge.
type TutorSubmission struct {
	ID                 uuid.UUID      `json:"id"`
	MinorUserID        uuid.UUID      `json:"minorUserId"`
	TutorUserID        uuid.UUID      `json:"tutorUserId"`
	ChallengeID        uuid.UUID      `json:"challengeId"`
	SubmissionID       uuid.UUID      `json:"submissionId"`
	TutorConfirmation  *string        `json:"tutorConfirmation"`
	PointsDistribution map[string]any `json:"pointsDistribution,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a user's accumulated points.
type LeaderboardEntry struct {
	UserID uuid.UUID `json:"userId"`
	Points int       `json:"points"`
}
