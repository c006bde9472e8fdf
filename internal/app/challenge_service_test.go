package app_test

import (
	"context"
	"sync"
	"testing"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChallenge(f fixture, reward int, limit *int) domain.Challenge {
	challenge := domain.Challenge{
		ID:              uuid.New(),
		Title:           "Plant a tree",
		PointsReward:    reward,
		ValidationType:  "manual",
		MaxParticipants: limit,
	}
	f.store.SeedChallenges(challenge)
	return challenge
}

func photo(url string) domain.Evidence {
	return domain.Evidence{MediaURLs: []string{url}}
}

func TestJoinChallenge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	userID := uuid.New()

	enrollment, err := f.challenges.Join(ctx, userID, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentJoined, enrollment.Status)
	assert.Zero(t, enrollment.EvidenceCount)
	assert.Nil(t, enrollment.StartedAt)

	_, err = f.challenges.Join(ctx, userID, challenge.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.challenges.Join(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	views, err := f.challenges.ListUserChallenges(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Plant a tree", views[0].ChallengeTitle)
}

func TestJoinCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	limit := 1
	challenge := seedChallenge(f, 100, &limit)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.challenges.Join(ctx, uuid.New(), challenge.ID)
		}(i)
	}
	wg.Wait()

	joined, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			joined++
		case assert.ErrorIs(t, err, domain.ErrCapacityExceeded):
			full++
		}
	}
	assert.Equal(t, 1, joined)
	assert.Equal(t, 1, full)
}

func TestJoinWithNonPositiveCapIsUncapped(t *testing.T) {
	ctx := context.Background()
	for _, limit := range []int{0, -1} {
		f := newFixture(t)
		limit := limit
		challenge := seedChallenge(f, 100, &limit)
		for i := 0; i < 3; i++ {
			_, err := f.challenges.Join(ctx, uuid.New(), challenge.ID)
			require.NoError(t, err, "max participants %d", limit)
		}
	}
}

func TestConcurrentJoinsSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	userID := uuid.New()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.challenges.Join(ctx, userID, challenge.ID)
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
}

func TestSubmitEvidenceSequencing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	userID := uuid.New()
	enrollment, err := f.challenges.Join(ctx, userID, challenge.ID)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		submission, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("https://cdn.example/e.jpg"))
		require.NoError(t, err)
		assert.Equal(t, want, submission.SubmissionNumber)
		assert.Equal(t, domain.ValidationPending, submission.ValidationStatus)
		assert.Equal(t, domain.DefaultSubmissionType, submission.Evidence.SubmissionType)
	}

	submissions, err := f.challenges.ListSubmissions(ctx, userID, enrollment.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 3)

	views, err := f.challenges.ListUserChallenges(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, len(submissions), views[0].EvidenceCount)
	assert.Equal(t, domain.EnrollmentInProgress, views[0].Status)
	assert.NotNil(t, views[0].StartedAt)

	_, err = f.challenges.SubmitEvidence(ctx, uuid.New(), enrollment.ID, photo("x"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.challenges.SubmitEvidence(ctx, userID, uuid.New(), photo("x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidateCompletesEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	userID, moderator := uuid.New(), uuid.New()
	enrollment, err := f.challenges.Join(ctx, userID, challenge.ID)
	require.NoError(t, err)
	submission, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("https://cdn.example/a.jpg"))
	require.NoError(t, err)

	pending, err := f.challenges.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Plant a tree", pending[0].ChallengeTitle)
	assert.Equal(t, userID.String(), pending[0].UserLabel)

	notes := "great job"
	result, err := f.challenges.Validate(ctx, app.ValidateRequest{
		SubmissionID: submission.ID,
		Score:        85,
		Notes:        &notes,
		ValidatorID:  moderator,
	})
	require.NoError(t, err)
	assert.Equal(t, 85, result.PointsEarned)
	assert.Equal(t, domain.ValidationValidated, result.Submission.ValidationStatus)
	require.NotNil(t, result.Submission.ValidatedBy)
	assert.Equal(t, moderator, *result.Submission.ValidatedBy)
	assert.Equal(t, domain.EnrollmentCompleted, result.Enrollment.Status)
	assert.Equal(t, 100.0, result.Enrollment.ProgressPercentage)
	assert.Equal(t, 85, result.Enrollment.PointsEarned)
	assert.NotNil(t, result.Enrollment.CompletedAt)

	pending, err = f.challenges.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: submission.ID, Score: 90, ValidatorID: moderator})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	top, err := f.ledger.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 85, top[0].Points)
}

func TestEvidenceAfterCompletionKeepsEnrollmentCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	userID, moderator := uuid.New(), uuid.New()
	enrollment, err := f.challenges.Join(ctx, userID, challenge.ID)
	require.NoError(t, err)

	first, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("https://cdn.example/1.jpg"))
	require.NoError(t, err)
	done, err := f.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: first.ID, Score: 90, ValidatorID: moderator})
	require.NoError(t, err)
	require.Equal(t, domain.EnrollmentCompleted, done.Enrollment.Status)
	completedAt := done.Enrollment.CompletedAt

	second, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("https://cdn.example/2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.SubmissionNumber)

	result, err := f.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: second.ID, Score: 40, ValidatorID: moderator})
	require.NoError(t, err)
	assert.Equal(t, 40, result.PointsEarned)
	assert.Equal(t, domain.EnrollmentCompleted, result.Enrollment.Status)
	assert.Equal(t, 100.0, result.Enrollment.ProgressPercentage)
	assert.Equal(t, 130, result.Enrollment.PointsEarned)
	assert.Equal(t, 2, result.Enrollment.EvidenceCount)
	assert.Equal(t, completedAt, result.Enrollment.CompletedAt)
}

func TestValidateBelowThresholdKeepsProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 50, nil)
	userID := uuid.New()
	enrollment, err := f.challenges.Join(ctx, userID, challenge.ID)
	require.NoError(t, err)

	first, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("a"))
	require.NoError(t, err)
	result, err := f.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: first.ID, Score: 69.9, ValidatorID: uuid.New(), BonusPoints: 3})
	require.NoError(t, err)
	assert.Equal(t, 35, result.PointsEarned)
	assert.Equal(t, domain.EnrollmentInProgress, result.Enrollment.Status)
	assert.Equal(t, 69.9, result.Enrollment.ProgressPercentage)
	assert.Equal(t, 3, result.Enrollment.BonusPoints)
	assert.Nil(t, result.Enrollment.CompletedAt)

	second, err := f.challenges.SubmitEvidence(ctx, userID, enrollment.ID, photo("b"))
	require.NoError(t, err)
	result, err = f.challenges.Validate(ctx, app.ValidateRequest{SubmissionID: second.ID, Score: 70, ValidatorID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, result.Enrollment.Status)
	assert.Equal(t, 35+35, result.Enrollment.PointsEarned)
}

func TestValidateRejectsOutOfRangeScores(t *testing.T) {
	f := newFixture(t)
	for _, score := range []float64{-1, 100.5} {
		_, err := f.challenges.Validate(context.Background(), app.ValidateRequest{SubmissionID: uuid.New(), Score: score})
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	_, err := f.challenges.Validate(context.Background(), app.ValidateRequest{SubmissionID: uuid.New(), Score: 50})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPointsForScore(t *testing.T) {
	for score := 0; score <= 100; score++ {
		got := app.PointsForScore(float64(score), 37)
		assert.InDelta(t, float64(score)/100*37, float64(got), 0.5+1e-9, "score %d", score)
	}
	assert.Equal(t, 85, app.PointsForScore(85, 100))
	assert.Equal(t, 0, app.PointsForScore(0, 100))
	assert.Equal(t, 100, app.PointsForScore(100, 100))
}

func TestTutorSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	minor, tutor := uuid.New(), uuid.New()
	confirmation := "Completed at home"

	result, err := f.challenges.TutorSubmit(ctx, app.TutorSubmitRequest{
		MinorUserID:        minor,
		TutorUserID:        tutor,
		ChallengeID:        challenge.ID,
		Evidence:           photo("https://cdn.example/t1.jpg"),
		Confirmation:       &confirmation,
		PointsDistribution: map[string]any{"base": 100, "bonus": 20},
	})
	require.NoError(t, err)
	assert.Equal(t, minor, result.Enrollment.UserID)
	assert.Equal(t, domain.EnrollmentInProgress, result.Enrollment.Status)
	assert.Equal(t, 1, result.Enrollment.EvidenceCount)
	assert.Equal(t, 1, result.Submission.SubmissionNumber)
	assert.Equal(t, result.Submission.ID, result.TutorSubmission.SubmissionID)
	assert.Equal(t, tutor, result.TutorSubmission.TutorUserID)

	second, err := f.challenges.TutorSubmit(ctx, app.TutorSubmitRequest{
		MinorUserID: minor,
		TutorUserID: tutor,
		ChallengeID: challenge.ID,
		Evidence:    photo("https://cdn.example/t2.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, result.Enrollment.ID, second.Enrollment.ID, "tutor reuses the existing enrollment")
	assert.Equal(t, 2, second.Submission.SubmissionNumber)
	assert.Equal(t, 2, second.Enrollment.EvidenceCount)
	assert.NotNil(t, second.TutorSubmission.PointsDistribution)

	records, err := f.challenges.ListTutorSubmissions(ctx, minor)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = f.challenges.TutorSubmit(ctx, app.TutorSubmitRequest{MinorUserID: minor, TutorUserID: tutor, ChallengeID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTutorSubmitRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	limit := 1
	challenge := seedChallenge(f, 100, &limit)
	_, err := f.challenges.Join(ctx, uuid.New(), challenge.ID)
	require.NoError(t, err)

	minor := uuid.New()
	_, err = f.challenges.TutorSubmit(ctx, app.TutorSubmitRequest{
		MinorUserID: minor, TutorUserID: uuid.New(), ChallengeID: challenge.ID, Evidence: photo("x"),
	})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	views, err := f.challenges.ListUserChallenges(ctx, minor)
	require.NoError(t, err)
	assert.Empty(t, views, "failed tutor join leaves no enrollment behind")
}

// staleLookupStore hides existing enrollments from lookups during its first unit of
// work, as if another request enrolled the user after the lookup ran.
type staleLookupStore struct {
	app.Store
	calls int
}

func (s *staleLookupStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	s.calls++
	stale := s.calls == 1
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if stale {
			tx = staleLookupTx{Tx: tx}
		}
		return fn(ctx, tx)
	})
}

type staleLookupTx struct{ app.Tx }

func (t staleLookupTx) Enrollments() app.EnrollmentRepository {
	return staleLookupEnrollments{EnrollmentRepository: t.Tx.Enrollments()}
}

type staleLookupEnrollments struct{ app.EnrollmentRepository }

func (staleLookupEnrollments) FindByUserAndChallenge(context.Context, uuid.UUID, uuid.UUID) (domain.UserChallenge, error) {
	return domain.UserChallenge{}, domain.ErrEnrollmentNotFound
}

func TestTutorSubmitRetriesLostJoinRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenge := seedChallenge(f, 100, nil)
	minor := uuid.New()
	enrollment, err := f.challenges.Join(ctx, minor, challenge.ID)
	require.NoError(t, err)

	store := &staleLookupStore{Store: f.store}
	challenges := app.NewChallengeService(store)
	result, err := challenges.TutorSubmit(ctx, app.TutorSubmitRequest{
		MinorUserID: minor, TutorUserID: uuid.New(), ChallengeID: challenge.ID, Evidence: photo("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, enrollment.ID, result.Enrollment.ID)
	assert.Equal(t, 1, result.Submission.SubmissionNumber)

	views, err := f.challenges.ListUserChallenges(ctx, minor)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestListPendingDegradesMissingChallenge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	enrollmentID := uuid.New()

	err := f.store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		enrollment := domain.UserChallenge{ID: enrollmentID, UserID: userID, ChallengeID: uuid.New(), Status: domain.EnrollmentJoined}
		if err := tx.Enrollments().Create(ctx, &enrollment); err != nil {
			return err
		}
		orphan := domain.ChallengeSubmission{ID: uuid.New(), UserChallengeID: uuid.New(), SubmissionNumber: 1, ValidationStatus: domain.ValidationPending}
		if err := tx.Submissions().Create(ctx, &orphan); err != nil {
			return err
		}
		sub := domain.ChallengeSubmission{ID: uuid.New(), UserChallengeID: enrollmentID, SubmissionNumber: 1, ValidationStatus: domain.ValidationPending}
		return tx.Submissions().Create(ctx, &sub)
	})
	require.NoError(t, err)

	pending, err := f.challenges.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, item := range pending {
		assert.Equal(t, domain.UnknownChallengeTitle, item.ChallengeTitle)
		if item.Enrollment == nil {
			assert.Equal(t, domain.UnknownUserLabel, item.UserLabel)
		} else {
			assert.Equal(t, userID.String(), item.UserLabel)
		}
	}
}
