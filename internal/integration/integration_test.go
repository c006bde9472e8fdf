package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/domain"
	"learning-progress-service/internal/infra/postgres"
	pgmigrations "learning-progress-service/internal/infra/postgres/migrations"
	infraredis "learning-progress-service/internal/infra/redis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	quizID      = uuid.MustParse("c3a1e0b2-6d4f-4a8e-9b7c-000000000001")
	questionID  = uuid.MustParse("c3a1e0b2-6d4f-4a8e-9b7c-0000000000a1")
	rightOption = uuid.MustParse("c3a1e0b2-6d4f-4a8e-9b7c-0000000000a2")
	wrongOption = uuid.MustParse("c3a1e0b2-6d4f-4a8e-9b7c-0000000000a3")
	challengeID = uuid.MustParse("c3a1e0b2-6d4f-4a8e-9b7c-0000000000c1")
)

type env struct {
	quizzes    *app.QuizService
	challenges *app.ChallengeService
	db         *bun.DB
}

func setup(t *testing.T, ctx context.Context) env {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := migrateAndSeed(t, ctx, pgURL)
	t.Cleanup(func() { _ = db.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zap.NewNop()
	catalog := infraredis.NewQuizCatalog(redisClient, postgres.NewCatalogLoader(pool), 5*time.Minute, logger)
	ledger := infraredis.NewLedger(redisClient)
	store := postgres.NewStore(db)

	return env{
		quizzes:    app.NewQuizService(store, catalog, app.WithLedger(ledger), app.WithLogger(logger)),
		challenges: app.NewChallengeService(store, app.WithLedger(ledger), app.WithLogger(logger)),
		db:         db,
	}
}

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)
	learner := uuid.New()

	session, err := e.quizzes.StartSession(ctx, learner, quizID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.QuestionsTotal != 1 {
		t.Fatalf("expected 1 question, got %d", session.QuestionsTotal)
	}

	option := rightOption
	_, updated, err := e.quizzes.SubmitAnswer(ctx, domain.AnswerSubmission{
		SessionID:        session.ID,
		QuestionID:       questionID,
		UserID:           learner,
		SelectedOptionID: &option,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if updated.Status != domain.SessionCompleted || updated.Passed == nil || !*updated.Passed {
		t.Fatalf("expected passed completed session, got %+v", updated)
	}

	wrong := wrongOption
	_, _, err = e.quizzes.SubmitAnswer(ctx, domain.AnswerSubmission{
		SessionID:        session.ID,
		QuestionID:       questionID,
		UserID:           learner,
		SelectedOptionID: &wrong,
	})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected inactive session error, got %v", err)
	}

	results, err := e.quizzes.GetResults(ctx, session.ID, learner)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.QuizTitle != "Integration quiz" || len(results.Questions) != 1 || results.Questions[0].UserAnswer == nil {
		t.Fatalf("unexpected results %+v", results)
	}

	progress, err := e.quizzes.GetUserProgress(ctx, learner)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Summary.PassedQuizzes != 1 || progress.Summary.PassRate != 100 {
		t.Fatalf("unexpected summary %+v", progress.Summary)
	}

	board, err := e.quizzes.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].UserID != learner || board[0].Points != 3 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestChallengeCapacityAndValidationEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	const contenders = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined []domain.UserChallenge
		full   int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enrollment, err := e.challenges.Join(ctx, uuid.New(), challengeID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined = append(joined, enrollment)
			case errors.Is(err, domain.ErrChallengeFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(joined) != 2 || full != contenders-2 {
		t.Fatalf("expected 2 joins and %d full, got %d joins %d full", contenders-2, len(joined), full)
	}
	var participants int
	if err := e.db.NewSelect().Table("challenges").Column("current_participants").
		Where("id = ?", challengeID).Scan(ctx, &participants); err != nil {
		t.Fatalf("read participants: %v", err)
	}
	if participants != 2 {
		t.Fatalf("expected counter 2, got %d", participants)
	}

	enrollment := joined[0]
	if _, err := e.challenges.Join(ctx, enrollment.UserID, challengeID); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected duplicate join conflict, got %v", err)
	}

	var submissions []domain.ChallengeSubmission
	for i := 0; i < 2; i++ {
		s, err := e.challenges.SubmitEvidence(ctx, enrollment.UserID, enrollment.ID, domain.Evidence{ContentText: fmt.Sprintf("day %d", i+1)})
		if err != nil {
			t.Fatalf("submit evidence: %v", err)
		}
		submissions = append(submissions, s)
	}
	if submissions[0].SubmissionNumber != 1 || submissions[1].SubmissionNumber != 2 {
		t.Fatalf("unexpected numbering %d, %d", submissions[0].SubmissionNumber, submissions[1].SubmissionNumber)
	}

	result, err := e.challenges.Validate(ctx, app.ValidateRequest{
		SubmissionID: submissions[1].ID,
		Score:        80,
		ValidatorID:  uuid.New(),
		BonusPoints:  5,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.PointsEarned != 32 || result.Enrollment.Status != domain.EnrollmentCompleted || result.Enrollment.BonusPoints != 5 {
		t.Fatalf("unexpected validation result %+v", result)
	}

	if _, err := e.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: submissions[1].ID, Score: 90, ValidatorID: uuid.New()}); !errors.Is(err, domain.ErrSubmissionValidated) {
		t.Fatalf("expected double validation to fail, got %v", err)
	}

	pending, err := e.challenges.ListPending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Submission.ID != submissions[0].ID || pending[0].ChallengeTitle != "Integration challenge" {
		t.Fatalf("unexpected pending list %+v", pending)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "learning", "POSTGRES_PASSWORD": "learningpass", "POSTGRES_DB": "learningdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://learning:learningpass@%s:%s/learningdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// migrateAndSeed applies the schema and inserts one quiz and one challenge capped at two participants.
func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO quizzes (id, title, pass_percentage, points_reward) VALUES (?, ?, ?, ?)`,
			[]any{quizID, "Integration quiz", 60.0, 3}},
		{`INSERT INTO quiz_questions (id, quiz_id, question_text, question_type, points, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{questionID, quizID, "What is 2 + 2?", string(domain.QuestionTypeMultipleChoice), 3, 1}},
		{`INSERT INTO quiz_options (id, question_id, option_text, is_correct, sort_order) VALUES (?, ?, ?, ?, ?), (?, ?, ?, ?, ?)`,
			[]any{wrongOption, questionID, "3", false, 1, rightOption, questionID, "4", true, 2}},
		{`INSERT INTO challenges (id, title, points_reward, max_participants) VALUES (?, ?, ?, ?)`,
			[]any{challengeID, "Integration challenge", 40, 2}},
	}
	for _, s := range seed {
		if _, err := db.ExecContext(ctx, s.query, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
