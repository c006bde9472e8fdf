package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

var sampleQuizID = uuid.MustParse("6f1c0f1e-4a39-4c57-9a57-0b8f6f1f0c01")

func TestQuizCatalogCaches(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(sampleQuiz())}
	catalog := NewQuizCatalog(loader, time.Minute)

	if _, err := catalog.GetQuiz(context.Background(), sampleQuizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	quiz, err := catalog.GetQuiz(context.Background(), sampleQuizID)
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].Prompt != "What is 2 + 2?" {
		t.Fatalf("unexpected quiz content: %+v", quiz)
	}
}

func TestQuizCatalogExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(sampleQuiz())}
	catalog := NewQuizCatalog(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	catalog.clock = func() time.Time { return now }

	if _, err := catalog.GetQuiz(context.Background(), sampleQuizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := catalog.GetQuiz(context.Background(), sampleQuizID); err != nil {
		t.Fatalf("get quiz after ttl: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}

	if err := catalog.Invalidate(context.Background(), sampleQuizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := catalog.GetQuiz(context.Background(), sampleQuizID); err != nil {
		t.Fatalf("get quiz after invalidate: %v", err)
	}
	if loader.count() != 3 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.count())
	}
}

func TestQuizCatalogMissing(t *testing.T) {
	catalog := NewQuizCatalog(NewStaticQuizLoader(), time.Minute)
	_, err := catalog.GetQuiz(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:             sampleQuizID,
		Title:          "Arithmetic",
		PassPercentage: 70,
		Questions: []domain.Question{
			{
				ID:     uuid.MustParse("6f1c0f1e-4a39-4c57-9a57-0b8f6f1f0c02"),
				QuizID: sampleQuizID,
				Prompt: "What is 2 + 2?",
				Type:   domain.QuestionTypeMultipleChoice,
				Options: []domain.Option{
					{ID: uuid.MustParse("6f1c0f1e-4a39-4c57-9a57-0b8f6f1f0c03"), Text: "3"},
					{ID: uuid.MustParse("6f1c0f1e-4a39-4c57-9a57-0b8f6f1f0c04"), Text: "4", Correct: true},
				},
				Points: 1,
			},
		},
	}
}
