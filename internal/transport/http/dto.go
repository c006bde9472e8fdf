package http

import (
	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

type answerRequest struct {
	QuestionID       string  `json:"questionId" binding:"required,uuid"`
	SelectedOptionID *string `json:"selectedOptionId" binding:"omitempty,uuid"`
	UserAnswerText   *string `json:"userAnswerText" binding:"omitempty,max=2000"`
	TimeTakenSeconds *int    `json:"timeTakenSeconds" binding:"omitempty,min=0"`
	AnswerConfidence *int    `json:"answerConfidence" binding:"omitempty,min=1,max=5"`
}

func (r answerRequest) toSubmission(sessionID, userID uuid.UUID) (domain.AnswerSubmission, error) {
	questionID, err := uuid.Parse(r.QuestionID)
	if err != nil {
		return domain.AnswerSubmission{}, domain.ErrInvalidID
	}
	submission := domain.AnswerSubmission{
		SessionID:        sessionID,
		QuestionID:       questionID,
		UserID:           userID,
		UserAnswerText:   r.UserAnswerText,
		TimeTakenSeconds: r.TimeTakenSeconds,
		AnswerConfidence: r.AnswerConfidence,
	}
	if r.SelectedOptionID != nil {
		optionID, err := uuid.Parse(*r.SelectedOptionID)
		if err != nil {
			return domain.AnswerSubmission{}, domain.ErrInvalidID
		}
		submission.SelectedOptionID = &optionID
	}
	return submission, nil
}

type answerResponse struct {
	Answer  domain.QuizAnswer  `json:"answer"`
	Session domain.QuizSession `json:"session"`
}

type evidenceRequest struct {
	SubmissionType  string         `json:"submissionType" binding:"omitempty,max=32"`
	ContentText     string         `json:"contentText" binding:"max=5000"`
	MediaURLs       []string       `json:"mediaUrls" binding:"omitempty,max=10,dive,url"`
	LocationData    map[string]any `json:"locationData"`
	MeasurementData map[string]any `json:"measurementData"`
	Metadata        map[string]any `json:"metadata"`
}

func (r evidenceRequest) toEvidence() domain.Evidence {
	return domain.Evidence{
		SubmissionType:  r.SubmissionType,
		ContentText:     r.ContentText,
		MediaURLs:       r.MediaURLs,
		LocationData:    r.LocationData,
		MeasurementData: r.MeasurementData,
		Metadata:        r.Metadata,
	}
}

type tutorSubmitRequest struct {
	MinorUserID        string          `json:"minorUserId" binding:"required,uuid"`
	Evidence           evidenceRequest `json:"evidence"`
	TutorConfirmation  *string         `json:"tutorConfirmation" binding:"omitempty,max=2000"`
	PointsDistribution map[string]any  `json:"pointsDistribution"`
}

type validateRequest struct {
	Score       *float64 `json:"score" binding:"required"`
	Notes       *string  `json:"notes" binding:"omitempty,max=2000"`
	BonusPoints int      `json:"bonusPoints" binding:"min=0"`
}

type uploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// quizView is quiz content safe to show during an attempt: no correctness or explanations.
type quizView struct {
	ID               uuid.UUID      `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	TimeLimitMinutes int            `json:"timeLimitMinutes"`
	PassPercentage   float64        `json:"passPercentage"`
	Questions        []questionView `json:"questions"`
}

type questionView struct {
	ID      uuid.UUID           `json:"id"`
	Prompt  string              `json:"prompt"`
	Type    domain.QuestionType `json:"type"`
	Points  int                 `json:"points"`
	Options []optionView        `json:"options"`
}

type optionView struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

func newQuizView(quiz domain.Quiz) quizView {
	view := quizView{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		PassPercentage:   quiz.PassPercentage,
		Questions:        make([]questionView, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		qv := questionView{ID: q.ID, Prompt: q.Prompt, Type: q.Type, Points: q.Points, Options: make([]optionView, 0, len(q.Options))}
		for _, o := range q.Options {
			qv.Options = append(qv.Options, optionView{ID: o.ID, Text: o.Text})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}
