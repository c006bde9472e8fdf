package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuizService contains the quiz attempt use cases.
type QuizService struct {
	store   Store
	quizzes QuizCatalog
	opts    options
}

func NewQuizService(store Store, quizzes QuizCatalog, opts ...Option) *QuizService {
	return &QuizService{store: store, quizzes: quizzes, opts: buildOptions(opts)}
}

// StartSession creates a new attempt with a snapshot of the quiz's question count.
func (s *QuizService) StartSession(ctx context.Context, userID, quizID uuid.UUID) (domain.QuizSession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.QuizSession{}, domain.ErrQuizHasNoQuestions
	}

	now := s.opts.now()
	session := domain.QuizSession{
		ID:             uuid.New(),
		UserID:         userID,
		QuizID:         quizID,
		SessionToken:   s.opts.newToken(),
		QuestionsTotal: len(quiz.Questions),
		Status:         domain.SessionStarted,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Sessions().Create(ctx, &session)
	})
	if err != nil {
		return domain.QuizSession{}, err
	}

	s.opts.metrics.SessionStarted()
	s.opts.logger.Debug("quiz session started",
		zap.String("session_id", session.ID.String()),
		zap.String("quiz_id", quizID.String()),
		zap.String("user_id", userID.String()),
	)
	return session, nil
}

// Quiz returns catalog content for display. Callers must not expose option correctness
// before the attempt completes.
func (s *QuizService) Quiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// RefreshQuiz drops any cached copy of the quiz and reloads it from the backing store.
// Sessions started earlier keep the question count they were started with.
func (s *QuizService) RefreshQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	if inv, ok := s.quizzes.(CatalogInvalidator); ok {
		if err := inv.Invalidate(ctx, quizID); err != nil {
			return domain.Quiz{}, fmt.Errorf("invalidate quiz %s: %w", quizID, err)
		}
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.opts.logger.Info("quiz content refreshed",
		zap.String("quiz_id", quizID.String()),
		zap.Int("questions", len(quiz.Questions)),
	)
	return quiz, nil
}

// SubmitAnswer records an answer, re-aggregates the session counters and completes
// the session once every question has been answered. It returns the created answer
// and the session as persisted after the update.
func (s *QuizService) SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) (domain.QuizAnswer, domain.QuizSession, error) {
	if submission.SelectedOptionID == nil && (submission.UserAnswerText == nil || strings.TrimSpace(*submission.UserAnswerText) == "") {
		return domain.QuizAnswer{}, domain.QuizSession{}, domain.ErrEmptyAnswer
	}
	if submission.SelectedOptionID != nil && submission.UserAnswerText != nil {
		return domain.QuizAnswer{}, domain.QuizSession{}, domain.ErrAmbiguousAnswer
	}

	var (
		answer  domain.QuizAnswer
		session domain.QuizSession
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		session, err = tx.Sessions().GetForUpdate(ctx, submission.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != submission.UserID {
			return domain.ErrNotSessionOwner
		}
		if !session.Active() {
			return domain.ErrSessionNotActive
		}

		quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
		if err != nil {
			return err
		}
		question, ok := quiz.Question(submission.QuestionID)
		if !ok {
			return domain.ErrQuestionNotFound
		}

		correct, points := scoreSubmission(question, submission)
		answer = domain.QuizAnswer{
			ID:               uuid.New(),
			SessionID:        session.ID,
			QuestionID:       question.ID,
			SelectedOptionID: submission.SelectedOptionID,
			UserAnswerText:   submission.UserAnswerText,
			IsCorrect:        correct,
			PointsEarned:     points,
			TimeTakenSeconds: submission.TimeTakenSeconds,
			AnswerConfidence: submission.AnswerConfidence,
			CreatedAt:        s.opts.now(),
		}
		if err := tx.Answers().Create(ctx, &answer); err != nil {
			return err
		}

		answers, err := tx.Answers().ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		applyAnswers(&session, answers, s.passThreshold(quiz), s.opts.now())
		return tx.Sessions().Update(ctx, &session)
	})
	if err != nil {
		return domain.QuizAnswer{}, domain.QuizSession{}, err
	}

	s.opts.metrics.AnswerRecorded(answer.IsCorrect)
	if !session.Active() {
		s.onSessionCompleted(ctx, session)
	}
	return answer, session, nil
}

// GetSessionByToken resolves a session through its alternate lookup key.
func (s *QuizService) GetSessionByToken(ctx context.Context, token string, callerID uuid.UUID) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		session, err = tx.Sessions().GetByToken(ctx, token)
		return err
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	if session.UserID != callerID {
		return domain.QuizSession{}, domain.ErrNotSessionOwner
	}
	return session, nil
}

func (s *QuizService) passThreshold(quiz domain.Quiz) float64 {
	if quiz.PassPercentage > 0 {
		return quiz.PassPercentage
	}
	return s.opts.passPercentage
}

func (s *QuizService) onSessionCompleted(ctx context.Context, session domain.QuizSession) {
	passed := session.Passed != nil && *session.Passed
	s.opts.metrics.SessionCompleted(passed, session.PointsEarned)
	s.opts.logger.Info("quiz session completed",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", session.UserID.String()),
		zap.Float64("percentage_score", session.PercentageScore),
		zap.Bool("passed", passed),
		zap.Int("points_earned", session.PointsEarned),
	)
	if s.opts.ledger == nil || session.PointsEarned == 0 {
		return
	}
	if err := s.opts.ledger.Award(ctx, session.UserID, session.PointsEarned); err != nil {
		s.opts.logger.Warn("leaderboard update failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
}

// applyAnswers recomputes the running counters from every answer recorded so far
// and completes the session when questionsAnswered reaches questionsTotal.
func applyAnswers(session *domain.QuizSession, answers []domain.QuizAnswer, passThreshold float64, now time.Time) {
	answered, correct, points, seconds := 0, 0, 0, 0
	for _, a := range answers {
		answered++
		if a.IsCorrect {
			correct++
		}
		points += a.PointsEarned
		if a.TimeTakenSeconds != nil {
			seconds += *a.TimeTakenSeconds
		}
	}

	session.QuestionsAnswered = answered
	session.QuestionsCorrect = correct
	session.PointsEarned = points
	session.PercentageScore = percentage(correct, session.QuestionsTotal)
	session.UpdatedAt = now

	if answered >= session.QuestionsTotal {
		passed := session.PercentageScore >= passThreshold
		completedAt := now
		session.Status = domain.SessionCompleted
		session.CompletedAt = &completedAt
		session.TimeTakenSeconds = &seconds
		session.Passed = &passed
	}
}

func percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// scoreSubmission validates the answer against quiz content and returns (correct, points).
// Multiple choice: correct iff the selected option is flagged correct.
// Text: correct iff the text equals the correct option's text, ignoring case.
func scoreSubmission(question domain.Question, submission domain.AnswerSubmission) (bool, int) {
	correct := false
	switch question.Type {
	case domain.QuestionTypeText:
		if submission.UserAnswerText == nil {
			break
		}
		if opt, ok := question.CorrectOption(); ok {
			correct = strings.EqualFold(*submission.UserAnswerText, opt.Text)
		}
	default:
		if submission.SelectedOptionID == nil {
			break
		}
		if opt, ok := question.Option(*submission.SelectedOptionID); ok {
			correct = opt.Correct
		}
	}
	if correct {
		return true, question.Points
	}
	return false, 0
}
