package domain

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder labels used by read models when a referenced record is missing.
const (
	UnknownQuizTitle      = "Unknown Quiz"
	UnknownChallengeTitle = "Unknown Challenge"
	UnknownUserLabel      = "Unknown"
)

// AnswerView is the user's recorded answer as shown in results.
type AnswerView struct {
	SelectedOptionID *uuid.UUID `json:"selectedOptionId"`
	UserAnswerText   *string    `json:"userAnswerText"`
	IsCorrect        bool       `json:"isCorrect"`
	PointsEarned     int        `json:"pointsEarned"`
	TimeTakenSeconds *int       `json:"timeTakenSeconds"`
}

// OptionView exposes an option together with its correctness after the fact.
type OptionView struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	IsCorrect   bool      `json:"isCorrect"`
	Explanation string    `json:"explanation,omitempty"`
}

// QuestionResult joins a catalog question with the user's answer (if any).
type QuestionResult struct {
	QuestionID   uuid.UUID    `json:"questionId"`
	QuestionText string       `json:"questionText"`
	QuestionType QuestionType `json:"questionType"`
	Explanation  string       `json:"explanation,omitempty"`
	PointsValue  int          `json:"pointsValue"`
	Options      []OptionView `json:"options"`
	UserAnswer   *AnswerView  `json:"userAnswer"`
}

// QuizResults is the composed results read model for one session.
type QuizResults struct {
	SessionID         uuid.UUID        `json:"sessionId"`
	QuizID            uuid.UUID        `json:"quizId"`
	QuizTitle         string           `json:"quizTitle"`
	UserID            uuid.UUID        `json:"userId"`
	Status            SessionStatus    `json:"status"`
	QuestionsTotal    int              `json:"questionsTotal"`
	QuestionsAnswered int              `json:"questionsAnswered"`
	QuestionsCorrect  int              `json:"questionsCorrect"`
	PointsEarned      int              `json:"pointsEarned"`
	PercentageScore   float64          `json:"percentageScore"`
	PassPercentage    float64          `json:"passPercentage"`
	Passed            *bool            `json:"passed"`
	TimeTakenSeconds  *int             `json:"timeTakenSeconds"`
	StartedAt         time.Time        `json:"startedAt"`
	CompletedAt       *time.Time       `json:"completedAt"`
	Questions         []QuestionResult `json:"questions"`
}

// AttemptSummary is one completed attempt in a user's quiz history.
type AttemptSummary struct {
	SessionID    uuid.UUID  `json:"sessionId"`
	Score        float64    `json:"score"`
	PointsEarned int        `json:"pointsEarned"`
	Passed       bool       `json:"passed"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// LiveProgress describes an active session's state.
type LiveProgress struct {
	QuestionsAnswered int     `json:"questionsAnswered"`
	QuestionsTotal    int     `json:"questionsTotal"`
	CurrentScore      float64 `json:"currentScore"`
}

// QuizProgress groups a user's sessions for one quiz.
type QuizProgress struct {
	QuizID           uuid.UUID        `json:"quizId"`
	QuizTitle        string           `json:"quizTitle"`
	Attempts         []AttemptSummary `json:"attempts"`
	BestScore        float64          `json:"bestScore"`
	LastAttemptDate  *time.Time       `json:"lastAttemptDate"`
	Completed        bool             `json:"completed"`
	Passed           bool             `json:"passed"`
	InProgress       bool             `json:"inProgress"`
	CurrentSessionID *uuid.UUID       `json:"currentSessionId,omitempty"`
	CurrentProgress  *LiveProgress    `json:"currentProgress,omitempty"`
}

// ProgressSummary aggregates over all quizzes the user has touched.
type ProgressSummary struct {
	TotalQuizzes     int     `json:"totalQuizzes"`
	CompletedQuizzes int     `json:"completedQuizzes"`
	PassedQuizzes    int     `json:"passedQuizzes"`
	AverageScore     float64 `json:"averageScore"`
	CompletionRate   float64 `json:"completionRate"`
	PassRate         float64 `json:"passRate"`
}

// UserQuizProgress is the progress read model for one user.
type UserQuizProgress struct {
	UserID  uuid.UUID       `json:"userId"`
	Summary ProgressSummary `json:"summary"`
	Quizzes []QuizProgress  `json:"quizzes"`
}

// ValidationResult is returned by a submission validation.
type ValidationResult struct {
	Submission   ChallengeSubmission `json:"submission"`
	PointsEarned int                 `json:"pointsEarned"`
	Enrollment   UserChallenge       `json:"userChallenge"`
}

// TutorSubmitResult bundles everything a tutor submission created or touched.
type TutorSubmitResult struct {
	Enrollment      UserChallenge       `json:"userChallenge"`
	Submission      ChallengeSubmission `json:"submission"`
	TutorSubmission TutorSubmission     `json:"tutorSubmission"`
}

// PendingValidation is a submission enriched for moderator review.
// Enrollment is nil and UserLabel is UnknownUserLabel when the enrollment is missing.
type PendingValidation struct {
	Submission     ChallengeSubmission `json:"submission"`
	Enrollment     *UserChallenge      `json:"userChallenge"`
	UserLabel      string              `json:"userLabel"`
	ChallengeTitle string              `json:"challengeTitle"`
}

// EnrollmentView is a user's enrollment enriched with its challenge title.
type EnrollmentView struct {
	UserChallenge
	ChallengeTitle string `json:"challengeTitle"`
}
