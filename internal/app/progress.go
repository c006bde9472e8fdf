package app

import (
	"context"
	"errors"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

// GetResults joins the session, its answers and the quiz content into one read model.
func (s *QuizService) GetResults(ctx context.Context, sessionID, callerID uuid.UUID) (domain.QuizResults, error) {
	var (
		session domain.QuizSession
		answers []domain.QuizAnswer
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		session, err = tx.Sessions().Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.UserID != callerID {
			return domain.ErrNotSessionOwner
		}
		answers, err = tx.Answers().ListBySession(ctx, sessionID)
		return err
	})
	if err != nil {
		return domain.QuizResults{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.QuizResults{}, err
	}

	byQuestion := make(map[uuid.UUID]domain.QuizAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	questions := make([]domain.QuestionResult, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		options := make([]domain.OptionView, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, domain.OptionView{
				ID:          opt.ID,
				Text:        opt.Text,
				IsCorrect:   opt.Correct,
				Explanation: opt.Explanation,
			})
		}
		result := domain.QuestionResult{
			QuestionID:   q.ID,
			QuestionText: q.Prompt,
			QuestionType: q.Type,
			Explanation:  q.Explanation,
			PointsValue:  q.Points,
			Options:      options,
		}
		if a, ok := byQuestion[q.ID]; ok {
			result.UserAnswer = &domain.AnswerView{
				SelectedOptionID: a.SelectedOptionID,
				UserAnswerText:   a.UserAnswerText,
				IsCorrect:        a.IsCorrect,
				PointsEarned:     a.PointsEarned,
				TimeTakenSeconds: a.TimeTakenSeconds,
			}
		}
		questions = append(questions, result)
	}

	return domain.QuizResults{
		SessionID:         session.ID,
		QuizID:            quiz.ID,
		QuizTitle:         quiz.Title,
		UserID:            session.UserID,
		Status:            session.Status,
		QuestionsTotal:    session.QuestionsTotal,
		QuestionsAnswered: session.QuestionsAnswered,
		QuestionsCorrect:  session.QuestionsCorrect,
		PointsEarned:      session.PointsEarned,
		PercentageScore:   session.PercentageScore,
		PassPercentage:    s.passThreshold(quiz),
		Passed:            session.Passed,
		TimeTakenSeconds:  session.TimeTakenSeconds,
		StartedAt:         session.StartedAt,
		CompletedAt:       session.CompletedAt,
		Questions:         questions,
	}, nil
}

// GetUserProgress partitions a user's sessions into completed and active ones and
// groups them by quiz.
func (s *QuizService) GetUserProgress(ctx context.Context, userID uuid.UUID) (domain.UserQuizProgress, error) {
	var sessions []domain.QuizSession
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		sessions, err = tx.Sessions().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return domain.UserQuizProgress{}, err
	}

	var (
		order    []uuid.UUID
		progress = make(map[uuid.UUID]*domain.QuizProgress)
	)
	entry := func(quizID uuid.UUID) (*domain.QuizProgress, error) {
		if p, ok := progress[quizID]; ok {
			return p, nil
		}
		title, err := s.quizTitle(ctx, quizID)
		if err != nil {
			return nil, err
		}
		p := &domain.QuizProgress{QuizID: quizID, QuizTitle: title, Attempts: []domain.AttemptSummary{}}
		progress[quizID] = p
		order = append(order, quizID)
		return p, nil
	}

	for _, session := range sessions {
		if session.Active() {
			continue
		}
		p, err := entry(session.QuizID)
		if err != nil {
			return domain.UserQuizProgress{}, err
		}
		passed := session.Passed != nil && *session.Passed
		p.Attempts = append(p.Attempts, domain.AttemptSummary{
			SessionID:    session.ID,
			Score:        session.PercentageScore,
			PointsEarned: session.PointsEarned,
			Passed:       passed,
			CompletedAt:  session.CompletedAt,
		})
		if session.PercentageScore > p.BestScore {
			p.BestScore = session.PercentageScore
		}
		if session.CompletedAt != nil && (p.LastAttemptDate == nil || session.CompletedAt.After(*p.LastAttemptDate)) {
			completedAt := *session.CompletedAt
			p.LastAttemptDate = &completedAt
		}
		if passed {
			p.Passed = true
		}
		p.Completed = true
	}

	for _, session := range sessions {
		if !session.Active() {
			continue
		}
		p, err := entry(session.QuizID)
		if err != nil {
			return domain.UserQuizProgress{}, err
		}
		sessionID := session.ID
		p.InProgress = true
		p.CurrentSessionID = &sessionID
		p.CurrentProgress = &domain.LiveProgress{
			QuestionsAnswered: session.QuestionsAnswered,
			QuestionsTotal:    session.QuestionsTotal,
			CurrentScore:      session.PercentageScore,
		}
	}

	result := domain.UserQuizProgress{UserID: userID, Quizzes: make([]domain.QuizProgress, 0, len(order))}
	var bestScores float64
	for _, quizID := range order {
		p := progress[quizID]
		result.Quizzes = append(result.Quizzes, *p)
		if p.Completed {
			result.Summary.CompletedQuizzes++
			bestScores += p.BestScore
		}
		if p.Passed {
			result.Summary.PassedQuizzes++
		}
	}

	summary := &result.Summary
	summary.TotalQuizzes = len(order)
	if summary.CompletedQuizzes > 0 {
		summary.AverageScore = bestScores / float64(summary.CompletedQuizzes)
		summary.PassRate = float64(summary.PassedQuizzes) / float64(summary.CompletedQuizzes) * 100
	}
	if summary.TotalQuizzes > 0 {
		summary.CompletionRate = float64(summary.CompletedQuizzes) / float64(summary.TotalQuizzes) * 100
	}
	return result, nil
}

func (s *QuizService) quizTitle(ctx context.Context, quizID uuid.UUID) (string, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UnknownQuizTitle, nil
	}
	if err != nil {
		return "", err
	}
	return quiz.Title, nil
}

// Leaderboard returns the top n users by accumulated points.
func (s *QuizService) Leaderboard(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if s.opts.ledger == nil {
		return []domain.LeaderboardEntry{}, nil
	}
	return s.opts.ledger.Top(ctx, n)
}
