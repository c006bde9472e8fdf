package postgres

import (
	"context"
	"errors"
	"fmt"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads quiz content (quiz, questions, options) from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

// LoadQuiz returns the quiz with questions and options in display order.
func (l *CatalogLoader) LoadQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	quiz := domain.Quiz{ID: quizID}
	err := l.pool.QueryRow(ctx,
		`SELECT title, description, time_limit_minutes, pass_percentage, points_reward
		 FROM quizzes WHERE id = $1`, quizID,
	).Scan(&quiz.Title, &quiz.Description, &quiz.TimeLimitMinutes, &quiz.PassPercentage, &quiz.PointsReward)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	questions, err := l.loadQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := l.attachOptions(ctx, quizID, questions); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (l *CatalogLoader) loadQuestions(ctx context.Context, quizID uuid.UUID) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, question_text, question_type, explanation, points, sort_order
		 FROM quiz_questions WHERE quiz_id = $1
		 ORDER BY sort_order, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		q := domain.Question{QuizID: quizID, Options: []domain.Option{}}
		var questionType string
		if err := rows.Scan(&q.ID, &q.Prompt, &questionType, &q.Explanation, &q.Points, &q.SortOrder); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(questionType)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (l *CatalogLoader) attachOptions(ctx context.Context, quizID uuid.UUID, questions []domain.Question) error {
	index := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	rows, err := l.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.is_correct, o.sort_order, o.explanation
		 FROM quiz_options o
		 JOIN quiz_questions q ON q.id = o.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY q.sort_order, o.sort_order, o.id`, quizID)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			opt        domain.Option
			questionID uuid.UUID
		)
		if err := rows.Scan(&opt.ID, &questionID, &opt.Text, &opt.Correct, &opt.SortOrder, &opt.Explanation); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[questionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	return nil
}
