package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

// Store is an in-memory implementation of app.Store. Units of work run one at a
// time under a single mutex and are rolled back through an undo log on error.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	sessions      map[uuid.UUID]domain.QuizSession
	sessionTokens map[string]uuid.UUID
	answers       map[uuid.UUID][]domain.QuizAnswer

	challenges     map[uuid.UUID]domain.Challenge
	enrollments    map[uuid.UUID]domain.UserChallenge
	enrollmentKeys map[enrollmentKey]uuid.UUID
	submissions    map[uuid.UUID]domain.ChallengeSubmission
	submissionKeys map[submissionKey]uuid.UUID
	tutorRecords   map[uuid.UUID][]domain.TutorSubmission
}

type enrollmentKey struct {
	userID      uuid.UUID
	challengeID uuid.UUID
}

type submissionKey struct {
	enrollmentID uuid.UUID
	number       int
}

func NewStore() *Store {
	return &Store{
		now:            time.Now,
		sessions:       make(map[uuid.UUID]domain.QuizSession),
		sessionTokens:  make(map[string]uuid.UUID),
		answers:        make(map[uuid.UUID][]domain.QuizAnswer),
		challenges:     make(map[uuid.UUID]domain.Challenge),
		enrollments:    make(map[uuid.UUID]domain.UserChallenge),
		enrollmentKeys: make(map[enrollmentKey]uuid.UUID),
		submissions:    make(map[uuid.UUID]domain.ChallengeSubmission),
		submissionKeys: make(map[submissionKey]uuid.UUID),
		tutorRecords:   make(map[uuid.UUID][]domain.TutorSubmission),
	}
}

// SeedChallenges loads challenge catalog entries, replacing any with the same ID.
func (s *Store) SeedChallenges(challenges ...domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range challenges {
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = s.now()
		}
		s.challenges[c.ID] = c
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	store *Store
	undo  []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// put writes m[k] = v and records how to restore the previous value.
func put[K comparable, V any](tx *memTx, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	tx.undo = append(tx.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func (tx *memTx) Sessions() app.SessionRepository                 { return sessionRepo{tx} }
func (tx *memTx) Answers() app.AnswerRepository                   { return answerRepo{tx} }
func (tx *memTx) Challenges() app.ChallengeRepository             { return challengeRepo{tx} }
func (tx *memTx) Enrollments() app.EnrollmentRepository           { return enrollmentRepo{tx} }
func (tx *memTx) Submissions() app.SubmissionRepository           { return submissionRepo{tx} }
func (tx *memTx) TutorSubmissions() app.TutorSubmissionRepository { return tutorRepo{tx} }

type sessionRepo struct{ tx *memTx }

func (r sessionRepo) Create(_ context.Context, session *domain.QuizSession) error {
	s := r.tx.store
	if _, ok := s.sessionTokens[session.SessionToken]; ok {
		return domain.ErrConflict
	}
	session.UpdatedAt = s.now()
	put(r.tx, s.sessions, session.ID, *session)
	put(r.tx, s.sessionTokens, session.SessionToken, session.ID)
	return nil
}

func (r sessionRepo) Get(_ context.Context, id uuid.UUID) (domain.QuizSession, error) {
	session, ok := r.tx.store.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r sessionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.QuizSession, error) {
	return r.Get(ctx, id)
}

func (r sessionRepo) GetByToken(ctx context.Context, token string) (domain.QuizSession, error) {
	id, ok := r.tx.store.sessionTokens[token]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

func (r sessionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.QuizSession, error) {
	var out []domain.QuizSession
	for _, session := range r.tx.store.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r sessionRepo) Update(_ context.Context, session *domain.QuizSession) error {
	s := r.tx.store
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	session.UpdatedAt = s.now()
	put(r.tx, s.sessions, session.ID, *session)
	return nil
}

type answerRepo struct{ tx *memTx }

func (r answerRepo) Create(_ context.Context, answer *domain.QuizAnswer) error {
	s := r.tx.store
	existing := s.answers[answer.SessionID]
	for _, a := range existing {
		if a.QuestionID == answer.QuestionID {
			return domain.ErrAlreadyAnswered
		}
	}
	put(r.tx, s.answers, answer.SessionID, append(slices.Clone(existing), *answer))
	return nil
}

func (r answerRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]domain.QuizAnswer, error) {
	return slices.Clone(r.tx.store.answers[sessionID]), nil
}

type challengeRepo struct{ tx *memTx }

func (r challengeRepo) Get(_ context.Context, id uuid.UUID) (domain.Challenge, error) {
	challenge, ok := r.tx.store.challenges[id]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return challenge, nil
}

func (r challengeRepo) IncrementParticipants(ctx context.Context, id uuid.UUID) error {
	challenge, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if challenge.Full() {
		return domain.ErrChallengeFull
	}
	challenge.CurrentParticipants++
	challenge.UpdatedAt = r.tx.store.now()
	put(r.tx, r.tx.store.challenges, id, challenge)
	return nil
}

type enrollmentRepo struct{ tx *memTx }

func (r enrollmentRepo) Create(_ context.Context, enrollment *domain.UserChallenge) error {
	s := r.tx.store
	key := enrollmentKey{userID: enrollment.UserID, challengeID: enrollment.ChallengeID}
	if _, ok := s.enrollmentKeys[key]; ok {
		return domain.ErrAlreadyJoined
	}
	enrollment.UpdatedAt = s.now()
	put(r.tx, s.enrollments, enrollment.ID, *enrollment)
	put(r.tx, s.enrollmentKeys, key, enrollment.ID)
	return nil
}

func (r enrollmentRepo) Get(_ context.Context, id uuid.UUID) (domain.UserChallenge, error) {
	enrollment, ok := r.tx.store.enrollments[id]
	if !ok {
		return domain.UserChallenge{}, domain.ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (r enrollmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.UserChallenge, error) {
	return r.Get(ctx, id)
}

func (r enrollmentRepo) FindByUserAndChallenge(ctx context.Context, userID, challengeID uuid.UUID) (domain.UserChallenge, error) {
	id, ok := r.tx.store.enrollmentKeys[enrollmentKey{userID: userID, challengeID: challengeID}]
	if !ok {
		return domain.UserChallenge{}, domain.ErrEnrollmentNotFound
	}
	return r.Get(ctx, id)
}

func (r enrollmentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.UserChallenge, error) {
	var out []domain.UserChallenge
	for _, enrollment := range r.tx.store.enrollments {
		if enrollment.UserID == userID {
			out = append(out, enrollment)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.After(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// update applies fn to the stored enrollment and stamps UpdatedAt.
func (r enrollmentRepo) update(ctx context.Context, id uuid.UUID, fn func(*domain.UserChallenge)) error {
	enrollment, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(&enrollment)
	enrollment.UpdatedAt = r.tx.store.now()
	put(r.tx, r.tx.store.enrollments, id, enrollment)
	return nil
}

func (r enrollmentRepo) IncrementEvidence(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, func(e *domain.UserChallenge) {
		e.EvidenceCount++
	})
}

func (r enrollmentRepo) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, func(e *domain.UserChallenge) {
		if e.Status != domain.EnrollmentJoined {
			return
		}
		e.Status = domain.EnrollmentInProgress
		e.StartedAt = &at
	})
}

func (r enrollmentRepo) AddPoints(ctx context.Context, id uuid.UUID, points int, bonus bool) error {
	return r.update(ctx, id, func(e *domain.UserChallenge) {
		if bonus {
			e.BonusPoints += points
			return
		}
		e.PointsEarned += points
	})
}

func (r enrollmentRepo) SetProgress(ctx context.Context, id uuid.UUID, percentage float64) error {
	return r.update(ctx, id, func(e *domain.UserChallenge) {
		e.ProgressPercentage = percentage
	})
}

func (r enrollmentRepo) Complete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, func(e *domain.UserChallenge) {
		e.Status = domain.EnrollmentCompleted
		e.ProgressPercentage = 100
		e.CompletedAt = &at
	})
}

type submissionRepo struct{ tx *memTx }

func (r submissionRepo) Create(_ context.Context, submission *domain.ChallengeSubmission) error {
	s := r.tx.store
	key := submissionKey{enrollmentID: submission.UserChallengeID, number: submission.SubmissionNumber}
	if _, ok := s.submissionKeys[key]; ok {
		return domain.ErrDuplicateSubmissionNumber
	}
	submission.UpdatedAt = s.now()
	put(r.tx, s.submissions, submission.ID, *submission)
	put(r.tx, s.submissionKeys, key, submission.ID)
	return nil
}

func (r submissionRepo) Get(_ context.Context, id uuid.UUID) (domain.ChallengeSubmission, error) {
	submission, ok := r.tx.store.submissions[id]
	if !ok {
		return domain.ChallengeSubmission{}, domain.ErrSubmissionNotFound
	}
	return submission, nil
}

func (r submissionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.ChallengeSubmission, error) {
	return r.Get(ctx, id)
}

func (r submissionRepo) CountByEnrollment(_ context.Context, enrollmentID uuid.UUID) (int, error) {
	n := 0
	for _, submission := range r.tx.store.submissions {
		if submission.UserChallengeID == enrollmentID {
			n++
		}
	}
	return n, nil
}

func (r submissionRepo) ListByEnrollment(_ context.Context, enrollmentID uuid.UUID) ([]domain.ChallengeSubmission, error) {
	var out []domain.ChallengeSubmission
	for _, submission := range r.tx.store.submissions {
		if submission.UserChallengeID == enrollmentID {
			out = append(out, submission)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmissionNumber < out[j].SubmissionNumber
	})
	return out, nil
}

func (r submissionRepo) ListPending(_ context.Context) ([]domain.ChallengeSubmission, error) {
	var out []domain.ChallengeSubmission
	for _, submission := range r.tx.store.submissions {
		if submission.ValidationStatus == domain.ValidationPending {
			out = append(out, submission)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SubmissionNumber < out[j].SubmissionNumber
	})
	return out, nil
}

func (r submissionRepo) Validate(ctx context.Context, id uuid.UUID, v domain.Validation) (domain.ChallengeSubmission, error) {
	submission, err := r.Get(ctx, id)
	if err != nil {
		return domain.ChallengeSubmission{}, err
	}
	score, validator, at := v.Score, v.ValidatedBy, v.ValidatedAt
	submission.ValidationStatus = domain.ValidationValidated
	submission.ValidationScore = &score
	submission.ValidationNotes = v.Notes
	submission.ValidatedBy = &validator
	submission.ValidatedAt = &at
	submission.UpdatedAt = r.tx.store.now()
	put(r.tx, r.tx.store.submissions, id, submission)
	return submission, nil
}

type tutorRepo struct{ tx *memTx }

func (r tutorRepo) Create(_ context.Context, ts *domain.TutorSubmission) error {
	s := r.tx.store
	put(r.tx, s.tutorRecords, ts.MinorUserID, append(slices.Clone(s.tutorRecords[ts.MinorUserID]), *ts))
	return nil
}

func (r tutorRepo) ListByMinor(_ context.Context, minorUserID uuid.UUID) ([]domain.TutorSubmission, error) {
	return slices.Clone(r.tx.store.tutorRecords[minorUserID]), nil
}
