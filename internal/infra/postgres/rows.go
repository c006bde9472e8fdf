package postgres

import (
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID            uuid.UUID  `bun:"user_id,type:uuid"`
	QuizID            uuid.UUID  `bun:"quiz_id,type:uuid"`
	SessionToken      string     `bun:"session_token"`
	QuestionsTotal    int        `bun:"questions_total"`
	QuestionsAnswered int        `bun:"questions_answered"`
	QuestionsCorrect  int        `bun:"questions_correct"`
	PointsEarned      int        `bun:"points_earned"`
	PercentageScore   float64    `bun:"percentage_score"`
	Status            string     `bun:"status"`
	Passed            *bool      `bun:"passed"`
	StartedAt         time.Time  `bun:"started_at"`
	CompletedAt       *time.Time `bun:"completed_at"`
	TimeTakenSeconds  *int       `bun:"time_taken_seconds"`
	UpdatedAt         time.Time  `bun:"updated_at"`
}

func newSessionRow(s domain.QuizSession) *sessionRow {
	return &sessionRow{
		ID:                s.ID,
		UserID:            s.UserID,
		QuizID:            s.QuizID,
		SessionToken:      s.SessionToken,
		QuestionsTotal:    s.QuestionsTotal,
		QuestionsAnswered: s.QuestionsAnswered,
		QuestionsCorrect:  s.QuestionsCorrect,
		PointsEarned:      s.PointsEarned,
		PercentageScore:   s.PercentageScore,
		Status:            string(s.Status),
		Passed:            s.Passed,
		StartedAt:         s.StartedAt,
		CompletedAt:       s.CompletedAt,
		TimeTakenSeconds:  s.TimeTakenSeconds,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (r sessionRow) toDomain() domain.QuizSession {
	return domain.QuizSession{
		ID:                r.ID,
		UserID:            r.UserID,
		QuizID:            r.QuizID,
		SessionToken:      r.SessionToken,
		QuestionsTotal:    r.QuestionsTotal,
		QuestionsAnswered: r.QuestionsAnswered,
		QuestionsCorrect:  r.QuestionsCorrect,
		PointsEarned:      r.PointsEarned,
		PercentageScore:   r.PercentageScore,
		Status:            domain.SessionStatus(r.Status),
		Passed:            r.Passed,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		TimeTakenSeconds:  r.TimeTakenSeconds,
		UpdatedAt:         r.UpdatedAt,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid"`
	SessionID        uuid.UUID  `bun:"session_id,type:uuid"`
	QuestionID       uuid.UUID  `bun:"question_id,type:uuid"`
	SelectedOptionID *uuid.UUID `bun:"selected_option_id,type:uuid"`
	UserAnswerText   *string    `bun:"user_answer_text"`
	IsCorrect        bool       `bun:"is_correct"`
	PointsEarned     int        `bun:"points_earned"`
	TimeTakenSeconds *int       `bun:"time_taken_seconds"`
	AnswerConfidence *int       `bun:"answer_confidence"`
	CreatedAt        time.Time  `bun:"created_at"`
}

func newAnswerRow(a domain.QuizAnswer) *answerRow {
	return &answerRow{
		ID:               a.ID,
		SessionID:        a.SessionID,
		QuestionID:       a.QuestionID,
		SelectedOptionID: a.SelectedOptionID,
		UserAnswerText:   a.UserAnswerText,
		IsCorrect:        a.IsCorrect,
		PointsEarned:     a.PointsEarned,
		TimeTakenSeconds: a.TimeTakenSeconds,
		AnswerConfidence: a.AnswerConfidence,
		CreatedAt:        a.CreatedAt,
	}
}

func (r answerRow) toDomain() domain.QuizAnswer {
	return domain.QuizAnswer{
		ID:               r.ID,
		SessionID:        r.SessionID,
		QuestionID:       r.QuestionID,
		SelectedOptionID: r.SelectedOptionID,
		UserAnswerText:   r.UserAnswerText,
		IsCorrect:        r.IsCorrect,
		PointsEarned:     r.PointsEarned,
		TimeTakenSeconds: r.TimeTakenSeconds,
		AnswerConfidence: r.AnswerConfidence,
		CreatedAt:        r.CreatedAt,
	}
}

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges"`

	ID                  uuid.UUID  `bun:"id,pk,type:uuid"`
	Title               string     `bun:"title"`
	Description         string     `bun:"description"`
	Category            string     `bun:"category"`
	Difficulty          string     `bun:"difficulty"`
	PointsReward        int        `bun:"points_reward"`
	ValidationType      string     `bun:"validation_type"`
	MaxParticipants     *int       `bun:"max_participants"`
	CurrentParticipants int        `bun:"current_participants"`
	StartDate           *time.Time `bun:"start_date"`
	EndDate             *time.Time `bun:"end_date"`
	UpdatedAt           time.Time  `bun:"updated_at"`
}

func (r challengeRow) toDomain() domain.Challenge {
	return domain.Challenge{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Category:            r.Category,
		Difficulty:          r.Difficulty,
		PointsReward:        r.PointsReward,
		ValidationType:      r.ValidationType,
		MaxParticipants:     r.MaxParticipants,
		CurrentParticipants: r.CurrentParticipants,
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		UpdatedAt:           r.UpdatedAt,
	}
}

type enrollmentRow struct {
	bun.BaseModel `bun:"table:user_challenges"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID             uuid.UUID  `bun:"user_id,type:uuid"`
	ChallengeID        uuid.UUID  `bun:"challenge_id,type:uuid"`
	Status             string     `bun:"status"`
	ProgressPercentage float64    `bun:"progress_percentage"`
	PointsEarned       int        `bun:"points_earned"`
	BonusPoints        int        `bun:"bonus_points"`
	EvidenceCount      int        `bun:"evidence_count"`
	JoinedAt           time.Time  `bun:"joined_at"`
	StartedAt          *time.Time `bun:"started_at"`
	CompletedAt        *time.Time `bun:"completed_at"`
	UpdatedAt          time.Time  `bun:"updated_at"`
}

func newEnrollmentRow(e domain.UserChallenge) *enrollmentRow {
	return &enrollmentRow{
		ID:                 e.ID,
		UserID:             e.UserID,
		ChallengeID:        e.ChallengeID,
		Status:             string(e.Status),
		ProgressPercentage: e.ProgressPercentage,
		PointsEarned:       e.PointsEarned,
		BonusPoints:        e.BonusPoints,
		EvidenceCount:      e.EvidenceCount,
		JoinedAt:           e.JoinedAt,
		StartedAt:          e.StartedAt,
		CompletedAt:        e.CompletedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (r enrollmentRow) toDomain() domain.UserChallenge {
	return domain.UserChallenge{
		ID:                 r.ID,
		UserID:             r.UserID,
		ChallengeID:        r.ChallengeID,
		Status:             domain.EnrollmentStatus(r.Status),
		ProgressPercentage: r.ProgressPercentage,
		PointsEarned:       r.PointsEarned,
		BonusPoints:        r.BonusPoints,
		EvidenceCount:      r.EvidenceCount,
		JoinedAt:           r.JoinedAt,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type submissionRow struct {
	bun.BaseModel `bun:"table:challenge_submissions"`

	ID               uuid.UUID      `bun:"id,pk,type:uuid"`
	UserChallengeID  uuid.UUID      `bun:"user_challenge_id,type:uuid"`
	SubmissionNumber int            `bun:"submission_number"`
	SubmissionType   string         `bun:"submission_type"`
	ContentText      string         `bun:"content_text"`
	MediaURLs        []string       `bun:"media_urls,type:jsonb"`
	LocationData     map[string]any `bun:"location_data,type:jsonb"`
	MeasurementData  map[string]any `bun:"measurement_data,type:jsonb"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
	ValidationStatus string         `bun:"validation_status"`
	ValidationScore  *float64       `bun:"validation_score"`
	ValidationNotes  *string        `bun:"validation_notes"`
	ValidatedBy      *uuid.UUID     `bun:"validated_by,type:uuid"`
	ValidatedAt      *time.Time     `bun:"validated_at"`
	CreatedAt        time.Time      `bun:"created_at"`
	UpdatedAt        time.Time      `bun:"updated_at"`
}

func newSubmissionRow(s domain.ChallengeSubmission) *submissionRow {
	return &submissionRow{
		ID:               s.ID,
		UserChallengeID:  s.UserChallengeID,
		SubmissionNumber: s.SubmissionNumber,
		SubmissionType:   s.Evidence.SubmissionType,
		ContentText:      s.Evidence.ContentText,
		MediaURLs:        s.Evidence.MediaURLs,
		LocationData:     s.Evidence.LocationData,
		MeasurementData:  s.Evidence.MeasurementData,
		Metadata:         s.Evidence.Metadata,
		ValidationStatus: string(s.ValidationStatus),
		ValidationScore:  s.ValidationScore,
		ValidationNotes:  s.ValidationNotes,
		ValidatedBy:      s.ValidatedBy,
		ValidatedAt:      s.ValidatedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r submissionRow) toDomain() domain.ChallengeSubmission {
	return domain.ChallengeSubmission{
		ID:               r.ID,
		UserChallengeID:  r.UserChallengeID,
		SubmissionNumber: r.SubmissionNumber,
		Evidence: domain.Evidence{
			SubmissionType:  r.SubmissionType,
			ContentText:     r.ContentText,
			MediaURLs:       r.MediaURLs,
			LocationData:    r.LocationData,
			MeasurementData: r.MeasurementData,
			Metadata:        r.Metadata,
		},
		ValidationStatus: domain.ValidationStatus(r.ValidationStatus),
		ValidationScore:  r.ValidationScore,
		ValidationNotes:  r.ValidationNotes,
		ValidatedBy:      r.ValidatedBy,
		ValidatedAt:      r.ValidatedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type tutorSubmissionRow struct {
	bun.BaseModel `bun:"table:tutor_submissions"`

	ID                 uuid.UUID      `bun:"id,pk,type:uuid"`
	MinorUserID        uuid.UUID      `bun:"minor_user_id,type:uuid"`
	TutorUserID        uuid.UUID      `bun:"tutor_user_id,type:uuid"`
	ChallengeID        uuid.UUID      `bun:"challenge_id,type:uuid"`
	SubmissionID       uuid.UUID      `bun:"submission_id,type:uuid"`
	TutorConfirmation  *string        `bun:"tutor_confirmation"`
	PointsDistribution map[string]any `bun:"points_distribution,type:jsonb"`
	CreatedAt          time.Time      `bun:"created_at"`
}

func newTutorSubmissionRow(t domain.TutorSubmission) *tutorSubmissionRow {
	return &tutorSubmissionRow{
		ID:                 t.ID,
		MinorUserID:        t.MinorUserID,
		TutorUserID:        t.TutorUserID,
		ChallengeID:        t.ChallengeID,
		SubmissionID:       t.SubmissionID,
		TutorConfirmation:  t.TutorConfirmation,
		PointsDistribution: t.PointsDistribution,
		CreatedAt:          t.CreatedAt,
	}
}

func (r tutorSubmissionRow) toDomain() domain.TutorSubmission {
	return domain.TutorSubmission{
		ID:                 r.ID,
		MinorUserID:        r.MinorUserID,
		TutorUserID:        r.TutorUserID,
		ChallengeID:        r.ChallengeID,
		SubmissionID:       r.SubmissionID,
		TutorConfirmation:  r.TutorConfirmation,
		PointsDistribution: r.PointsDistribution,
		CreatedAt:          r.CreatedAt,
	}
}
