package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// Store implements app.Store on Postgres. Each unit of work is a bun transaction;
// rows that are read-then-written are locked with SELECT ... FOR UPDATE and
// duplicate joins/answers/submission numbers are rejected by unique indexes.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgTx{tx: tx, now: s.now})
	})
}

type pgTx struct {
	tx  bun.Tx
	now func() time.Time
}

func (t *pgTx) Sessions() app.SessionRepository                 { return sessionRepo{t} }
func (t *pgTx) Answers() app.AnswerRepository                   { return answerRepo{t} }
func (t *pgTx) Challenges() app.ChallengeRepository             { return challengeRepo{t} }
func (t *pgTx) Enrollments() app.EnrollmentRepository           { return enrollmentRepo{t} }
func (t *pgTx) Submissions() app.SubmissionRepository           { return submissionRepo{t} }
func (t *pgTx) TutorSubmissions() app.TutorSubmissionRepository { return tutorRepo{t} }

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// selectOne scans a single row into model, mapping no rows to notFound.
func selectOne(ctx context.Context, q *bun.SelectQuery, notFound error) error {
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// requireAffected maps a zero-row update to notFound.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type sessionRepo struct{ t *pgTx }

func (r sessionRepo) Create(ctx context.Context, session *domain.QuizSession) error {
	session.UpdatedAt = r.t.now()
	if _, err := r.t.tx.NewInsert().Model(newSessionRow(*session)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session token already in use: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert quiz session: %w", err)
	}
	return nil
}

func (r sessionRepo) get(ctx context.Context, where string, arg any, lock bool) (domain.QuizSession, error) {
	row := new(sessionRow)
	q := r.t.tx.NewSelect().Model(row).Where(where, arg)
	if lock {
		q = q.For("UPDATE")
	}
	if err := selectOne(ctx, q, domain.ErrSessionNotFound); err != nil {
		return domain.QuizSession{}, err
	}
	return row.toDomain(), nil
}

func (r sessionRepo) Get(ctx context.Context, id uuid.UUID) (domain.QuizSession, error) {
	return r.get(ctx, "id = ?", id, false)
}

func (r sessionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.QuizSession, error) {
	return r.get(ctx, "id = ?", id, true)
}

func (r sessionRepo) GetByToken(ctx context.Context, token string) (domain.QuizSession, error) {
	return r.get(ctx, "session_token = ?", token, false)
}

func (r sessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.QuizSession, error) {
	var rows []sessionRow
	err := r.t.tx.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("started_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quiz sessions: %w", err)
	}
	out := make([]domain.QuizSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r sessionRepo) Update(ctx context.Context, session *domain.QuizSession) error {
	session.UpdatedAt = r.t.now()
	res, err := r.t.tx.NewUpdate().Model(newSessionRow(*session)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update quiz session: %w", err)
	}
	return requireAffected(res, domain.ErrSessionNotFound)
}

type answerRepo struct{ t *pgTx }

func (r answerRepo) Create(ctx context.Context, answer *domain.QuizAnswer) error {
	if _, err := r.t.tx.NewInsert().Model(newAnswerRow(*answer)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAnswered
		}
		return fmt.Errorf("insert quiz answer: %w", err)
	}
	return nil
}

func (r answerRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.QuizAnswer, error) {
	var rows []answerRow
	err := r.t.tx.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quiz answers: %w", err)
	}
	out := make([]domain.QuizAnswer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type challengeRepo struct{ t *pgTx }

func (r challengeRepo) Get(ctx context.Context, id uuid.UUID) (domain.Challenge, error) {
	row := new(challengeRow)
	if err := selectOne(ctx, r.t.tx.NewSelect().Model(row).Where("id = ?", id), domain.ErrChallengeNotFound); err != nil {
		return domain.Challenge{}, err
	}
	return row.toDomain(), nil
}

// IncrementParticipants checks the cap and bumps the counter in one statement.
func (r challengeRepo) IncrementParticipants(ctx context.Context, id uuid.UUID) error {
	res, err := r.t.tx.NewUpdate().Model((*challengeRow)(nil)).
		Set("current_participants = current_participants + 1").
		Set("updated_at = ?", r.t.now()).
		Where("id = ?", id).
		Where("(max_participants IS NULL OR max_participants <= 0 OR current_participants < max_participants)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment participants: %w", err)
	}
	if err := requireAffected(res, domain.ErrChallengeFull); err != nil {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

type enrollmentRepo struct{ t *pgTx }

func (r enrollmentRepo) Create(ctx context.Context, enrollment *domain.UserChallenge) error {
	enrollment.UpdatedAt = r.t.now()
	if _, err := r.t.tx.NewInsert().Model(newEnrollmentRow(*enrollment)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyJoined
		}
		return fmt.Errorf("insert user challenge: %w", err)
	}
	return nil
}

func (r enrollmentRepo) get(ctx context.Context, q *bun.SelectQuery, row *enrollmentRow) (domain.UserChallenge, error) {
	if err := selectOne(ctx, q, domain.ErrEnrollmentNotFound); err != nil {
		return domain.UserChallenge{}, err
	}
	return row.toDomain(), nil
}

func (r enrollmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.UserChallenge, error) {
	row := new(enrollmentRow)
	return r.get(ctx, r.t.tx.NewSelect().Model(row).Where("id = ?", id), row)
}

func (r enrollmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.UserChallenge, error) {
	row := new(enrollmentRow)
	return r.get(ctx, r.t.tx.NewSelect().Model(row).Where("id = ?", id).For("UPDATE"), row)
}

func (r enrollmentRepo) FindByUserAndChallenge(ctx context.Context, userID, challengeID uuid.UUID) (domain.UserChallenge, error) {
	row := new(enrollmentRow)
	q := r.t.tx.NewSelect().Model(row).
		Where("user_id = ?", userID).
		Where("challenge_id = ?", challengeID)
	return r.get(ctx, q, row)
}

func (r enrollmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserChallenge, error) {
	var rows []enrollmentRow
	err := r.t.tx.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("joined_at DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user challenges: %w", err)
	}
	out := make([]domain.UserChallenge, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r enrollmentRepo) update(ctx context.Context, id uuid.UUID, build func(q *bun.UpdateQuery) *bun.UpdateQuery) error {
	q := r.t.tx.NewUpdate().Model((*enrollmentRow)(nil)).
		Set("updated_at = ?", r.t.now()).
		Where("id = ?", id)
	res, err := build(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user challenge: %w", err)
	}
	return requireAffected(res, domain.ErrEnrollmentNotFound)
}

func (r enrollmentRepo) IncrementEvidence(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("evidence_count = evidence_count + 1")
	})
}

func (r enrollmentRepo) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.t.tx.NewUpdate().Model((*enrollmentRow)(nil)).
		Set("status = ?", string(domain.EnrollmentInProgress)).
		Set("started_at = ?", at).
		Set("updated_at = ?", r.t.now()).
		Where("id = ?", id).
		Where("status = ?", string(domain.EnrollmentJoined)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("start user challenge: %w", err)
	}
	return nil
}

func (r enrollmentRepo) AddPoints(ctx context.Context, id uuid.UUID, points int, bonus bool) error {
	column := "points_earned"
	if bonus {
		column = "bonus_points"
	}
	return r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("? = ? + ?", bun.Ident(column), bun.Ident(column), points)
	})
}

func (r enrollmentRepo) SetProgress(ctx context.Context, id uuid.UUID, percentage float64) error {
	return r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("progress_percentage = ?", percentage)
	})
}

func (r enrollmentRepo) Complete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", string(domain.EnrollmentCompleted)).
			Set("progress_percentage = 100").
			Set("completed_at = ?", at)
	})
}

type submissionRepo struct{ t *pgTx }

func (r submissionRepo) Create(ctx context.Context, submission *domain.ChallengeSubmission) error {
	submission.UpdatedAt = r.t.now()
	if _, err := r.t.tx.NewInsert().Model(newSubmissionRow(*submission)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSubmissionNumber
		}
		return fmt.Errorf("insert challenge submission: %w", err)
	}
	return nil
}

func (r submissionRepo) get(ctx context.Context, id uuid.UUID, lock bool) (domain.ChallengeSubmission, error) {
	row := new(submissionRow)
	q := r.t.tx.NewSelect().Model(row).Where("id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := selectOne(ctx, q, domain.ErrSubmissionNotFound); err != nil {
		return domain.ChallengeSubmission{}, err
	}
	return row.toDomain(), nil
}

func (r submissionRepo) Get(ctx context.Context, id uuid.UUID) (domain.ChallengeSubmission, error) {
	return r.get(ctx, id, false)
}

func (r submissionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.ChallengeSubmission, error) {
	return r.get(ctx, id, true)
}

func (r submissionRepo) CountByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int, error) {
	n, err := r.t.tx.NewSelect().Model((*submissionRow)(nil)).
		Where("user_challenge_id = ?", enrollmentID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count challenge submissions: %w", err)
	}
	return n, nil
}

func (r submissionRepo) list(ctx context.Context, q *bun.SelectQuery, rows *[]submissionRow) ([]domain.ChallengeSubmission, error) {
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list challenge submissions: %w", err)
	}
	out := make([]domain.ChallengeSubmission, 0, len(*rows))
	for _, row := range *rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r submissionRepo) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]domain.ChallengeSubmission, error) {
	var rows []submissionRow
	q := r.t.tx.NewSelect().Model(&rows).
		Where("user_challenge_id = ?", enrollmentID).
		Order("submission_number ASC")
	return r.list(ctx, q, &rows)
}

func (r submissionRepo) ListPending(ctx context.Context) ([]domain.ChallengeSubmission, error) {
	var rows []submissionRow
	q := r.t.tx.NewSelect().Model(&rows).
		Where("validation_status = ?", string(domain.ValidationPending)).
		Order("created_at ASC", "submission_number ASC")
	return r.list(ctx, q, &rows)
}

func (r submissionRepo) Validate(ctx context.Context, id uuid.UUID, v domain.Validation) (domain.ChallengeSubmission, error) {
	res, err := r.t.tx.NewUpdate().Model((*submissionRow)(nil)).
		Set("validation_status = ?", string(domain.ValidationValidated)).
		Set("validation_score = ?", v.Score).
		Set("validation_notes = ?", v.Notes).
		Set("validated_by = ?", v.ValidatedBy).
		Set("validated_at = ?", v.ValidatedAt).
		Set("updated_at = ?", r.t.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return domain.ChallengeSubmission{}, fmt.Errorf("validate challenge submission: %w", err)
	}
	if err := requireAffected(res, domain.ErrSubmissionNotFound); err != nil {
		return domain.ChallengeSubmission{}, err
	}
	return r.Get(ctx, id)
}

type tutorRepo struct{ t *pgTx }

func (r tutorRepo) Create(ctx context.Context, ts *domain.TutorSubmission) error {
	if _, err := r.t.tx.NewInsert().Model(newTutorSubmissionRow(*ts)).Exec(ctx); err != nil {
		return fmt.Errorf("insert tutor submission: %w", err)
	}
	return nil
}

func (r tutorRepo) ListByMinor(ctx context.Context, minorUserID uuid.UUID) ([]domain.TutorSubmission, error) {
	var rows []tutorSubmissionRow
	err := r.t.tx.NewSelect().Model(&rows).
		Where("minor_user_id = ?", minorUserID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tutor submissions: %w", err)
	}
	out := make([]domain.TutorSubmission, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
