package app

import (
	"context"
	"errors"
	"math"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChallengeService contains the challenge participation and validation use cases.
type ChallengeService struct {
	store Store
	opts  options
}

func NewChallengeService(store Store, opts ...Option) *ChallengeService {
	return &ChallengeService{store: store, opts: buildOptions(opts)}
}

// TutorSubmitRequest is evidence submitted by a tutor on behalf of a minor.
type TutorSubmitRequest struct {
	MinorUserID        uuid.UUID
	TutorUserID        uuid.UUID
	ChallengeID        uuid.UUID
	Evidence           domain.Evidence
	Confirmation       *string
	PointsDistribution map[string]any
}

// ValidateRequest is a moderator's verdict. BonusPoints are credited on top of
// the score-derived points and tracked separately on the enrollment.
type ValidateRequest struct {
	SubmissionID uuid.UUID
	Score        float64
	Notes        *string
	ValidatorID  uuid.UUID
	BonusPoints  int
}

// PointsForScore converts a 0..100 validation score into points of the challenge reward.
func PointsForScore(score float64, reward int) int {
	return int(math.Round(score / 100 * float64(reward)))
}

// Join enrolls the user in the challenge and bumps the participant counter.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID uuid.UUID) (domain.UserChallenge, error) {
	var enrollment domain.UserChallenge
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Challenges().Get(ctx, challengeID); err != nil {
			return err
		}
		var err error
		enrollment, err = s.join(ctx, tx, userID, challengeID)
		return err
	})
	s.opts.metrics.JoinAttempted(joinOutcome(err))
	if err != nil {
		return domain.UserChallenge{}, err
	}

	s.opts.logger.Info("challenge joined",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("challenge_id", challengeID.String()),
		zap.String("user_id", userID.String()),
	)
	return enrollment, nil
}

// join creates the enrollment before taking a participant slot so that a duplicate
// join reports a conflict even when the challenge is also at capacity.
func (s *ChallengeService) join(ctx context.Context, tx Tx, userID, challengeID uuid.UUID) (domain.UserChallenge, error) {
	if _, err := tx.Enrollments().FindByUserAndChallenge(ctx, userID, challengeID); err == nil {
		return domain.UserChallenge{}, domain.ErrAlreadyJoined
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.UserChallenge{}, err
	}

	now := s.opts.now()
	enrollment := domain.UserChallenge{
		ID:          uuid.New(),
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      domain.EnrollmentJoined,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := tx.Enrollments().Create(ctx, &enrollment); err != nil {
		return domain.UserChallenge{}, err
	}
	if err := tx.Challenges().IncrementParticipants(ctx, challengeID); err != nil {
		return domain.UserChallenge{}, err
	}
	return enrollment, nil
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return "joined"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "full"
	default:
		return "error"
	}
}

// SubmitEvidence appends evidence to the caller's own enrollment.
func (s *ChallengeService) SubmitEvidence(ctx context.Context, userID, enrollmentID uuid.UUID, evidence domain.Evidence) (domain.ChallengeSubmission, error) {
	var submission domain.ChallengeSubmission
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		enrollment, err := tx.Enrollments().GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.UserID != userID {
			return domain.ErrNotEnrollmentOwner
		}
		submission, err = s.appendEvidence(ctx, tx, enrollment, evidence)
		return err
	})
	if err != nil {
		return domain.ChallengeSubmission{}, err
	}

	s.opts.metrics.SubmissionCreated("self")
	s.opts.logger.Debug("evidence submitted",
		zap.String("submission_id", submission.ID.String()),
		zap.String("enrollment_id", enrollmentID.String()),
		zap.Int("submission_number", submission.SubmissionNumber),
	)
	return submission, nil
}

// appendEvidence numbers and stores a submission, keeps evidenceCount in step and
// starts a joined enrollment. The caller must hold the enrollment for update.
func (s *ChallengeService) appendEvidence(ctx context.Context, tx Tx, enrollment domain.UserChallenge, evidence domain.Evidence) (domain.ChallengeSubmission, error) {
	prior, err := tx.Submissions().CountByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return domain.ChallengeSubmission{}, err
	}
	if evidence.SubmissionType == "" {
		evidence.SubmissionType = domain.DefaultSubmissionType
	}

	now := s.opts.now()
	submission := domain.ChallengeSubmission{
		ID:               uuid.New(),
		UserChallengeID:  enrollment.ID,
		SubmissionNumber: prior + 1,
		Evidence:         evidence,
		ValidationStatus: domain.ValidationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.Submissions().Create(ctx, &submission); err != nil {
		return domain.ChallengeSubmission{}, err
	}
	if err := tx.Enrollments().IncrementEvidence(ctx, enrollment.ID); err != nil {
		return domain.ChallengeSubmission{}, err
	}
	if enrollment.Status == domain.EnrollmentJoined {
		if err := tx.Enrollments().MarkStarted(ctx, enrollment.ID, now); err != nil {
			return domain.ChallengeSubmission{}, err
		}
	}
	return submission, nil
}

// TutorSubmit records evidence for a minor, joining the challenge on their behalf
// when they are not enrolled yet. A join that loses a race with a concurrent
// enrollment of the same minor is retried once against the winner's enrollment.
func (s *ChallengeService) TutorSubmit(ctx context.Context, req TutorSubmitRequest) (domain.TutorSubmitResult, error) {
	result, joined, err := s.tutorSubmit(ctx, req)
	if joined && errors.Is(err, domain.ErrAlreadyJoined) {
		s.opts.logger.Warn("tutor join raced with another enrollment; retrying",
			zap.String("minor_user_id", req.MinorUserID.String()),
			zap.String("challenge_id", req.ChallengeID.String()),
		)
		result, joined, err = s.tutorSubmit(ctx, req)
	}
	if err != nil {
		return domain.TutorSubmitResult{}, err
	}

	s.opts.metrics.SubmissionCreated("tutor")
	s.opts.logger.Info("tutor evidence submitted",
		zap.String("submission_id", result.Submission.ID.String()),
		zap.String("minor_user_id", req.MinorUserID.String()),
		zap.String("tutor_user_id", req.TutorUserID.String()),
		zap.Bool("joined_on_behalf", joined),
	)
	return result, nil
}

func (s *ChallengeService) tutorSubmit(ctx context.Context, req TutorSubmitRequest) (domain.TutorSubmitResult, bool, error) {
	var (
		result domain.TutorSubmitResult
		joined bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Challenges().Get(ctx, req.ChallengeID); err != nil {
			return err
		}

		enrollment, err := tx.Enrollments().FindByUserAndChallenge(ctx, req.MinorUserID, req.ChallengeID)
		if errors.Is(err, domain.ErrNotFound) {
			enrollment, err = s.join(ctx, tx, req.MinorUserID, req.ChallengeID)
			joined = true
		}
		if err != nil {
			return err
		}
		enrollment, err = tx.Enrollments().GetForUpdate(ctx, enrollment.ID)
		if err != nil {
			return err
		}

		submission, err := s.appendEvidence(ctx, tx, enrollment, req.Evidence)
		if err != nil {
			return err
		}

		distribution := req.PointsDistribution
		if distribution == nil {
			distribution = map[string]any{}
		}
		tutorSubmission := domain.TutorSubmission{
			ID:                 uuid.New(),
			MinorUserID:        req.MinorUserID,
			TutorUserID:        req.TutorUserID,
			ChallengeID:        req.ChallengeID,
			SubmissionID:       submission.ID,
			TutorConfirmation:  req.Confirmation,
			PointsDistribution: distribution,
			CreatedAt:          s.opts.now(),
		}
		if err := tx.TutorSubmissions().Create(ctx, &tutorSubmission); err != nil {
			return err
		}

		refreshed, err := tx.Enrollments().Get(ctx, enrollment.ID)
		if err != nil {
			return err
		}
		result = domain.TutorSubmitResult{
			Enrollment:      refreshed,
			Submission:      submission,
			TutorSubmission: tutorSubmission,
		}
		return nil
	})
	if joined {
		s.opts.metrics.JoinAttempted(joinOutcome(err))
	}
	if err != nil {
		return domain.TutorSubmitResult{}, joined, err
	}
	return result, joined, nil
}

// Validate scores a pending submission, credits points to its enrollment and
// completes the enrollment once the score reaches the completion threshold.
func (s *ChallengeService) Validate(ctx context.Context, req ValidateRequest) (domain.ValidationResult, error) {
	if req.Score < 0 || req.Score > 100 || math.IsNaN(req.Score) || req.BonusPoints < 0 {
		return domain.ValidationResult{}, domain.ErrScoreOutOfRange
	}

	var (
		result    domain.ValidationResult
		completed bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		submission, err := tx.Submissions().GetForUpdate(ctx, req.SubmissionID)
		if err != nil {
			return err
		}
		if submission.ValidationStatus == domain.ValidationValidated {
			return domain.ErrSubmissionValidated
		}
		enrollment, err := tx.Enrollments().GetForUpdate(ctx, submission.UserChallengeID)
		if err != nil {
			return err
		}
		challenge, err := tx.Challenges().Get(ctx, enrollment.ChallengeID)
		if err != nil {
			return err
		}

		now := s.opts.now()
		submission, err = tx.Submissions().Validate(ctx, submission.ID, domain.Validation{
			Score:       req.Score,
			Notes:       req.Notes,
			ValidatedBy: req.ValidatorID,
			ValidatedAt: now,
		})
		if err != nil {
			return err
		}

		points := PointsForScore(req.Score, challenge.PointsReward)
		if err := tx.Enrollments().AddPoints(ctx, enrollment.ID, points, false); err != nil {
			return err
		}
		if req.BonusPoints > 0 {
			if err := tx.Enrollments().AddPoints(ctx, enrollment.ID, req.BonusPoints, true); err != nil {
				return err
			}
		}

		switch {
		case enrollment.Status == domain.EnrollmentCompleted:
		case req.Score >= s.opts.completionScore:
			if err := tx.Enrollments().Complete(ctx, enrollment.ID, now); err != nil {
				return err
			}
			completed = true
		default:
			if err := tx.Enrollments().SetProgress(ctx, enrollment.ID, req.Score); err != nil {
				return err
			}
		}

		refreshed, err := tx.Enrollments().Get(ctx, enrollment.ID)
		if err != nil {
			return err
		}
		result = domain.ValidationResult{
			Submission:   submission,
			PointsEarned: points,
			Enrollment:   refreshed,
		}
		return nil
	})
	if err != nil {
		return domain.ValidationResult{}, err
	}

	awarded := result.PointsEarned + req.BonusPoints
	s.opts.metrics.SubmissionValidated(completed, awarded)
	s.opts.logger.Info("submission validated",
		zap.String("submission_id", req.SubmissionID.String()),
		zap.String("validator_id", req.ValidatorID.String()),
		zap.Float64("score", req.Score),
		zap.Int("points_earned", result.PointsEarned),
		zap.Bool("enrollment_completed", completed),
	)
	if s.opts.ledger != nil && awarded > 0 {
		if err := s.opts.ledger.Award(ctx, result.Enrollment.UserID, awarded); err != nil {
			s.opts.logger.Warn("leaderboard update failed",
				zap.String("submission_id", req.SubmissionID.String()),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// ListPending returns submissions awaiting moderation, oldest first. Missing
// enrollments or challenges degrade to placeholder labels.
func (s *ChallengeService) ListPending(ctx context.Context) ([]domain.PendingValidation, error) {
	var pending []domain.PendingValidation
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		submissions, err := tx.Submissions().ListPending(ctx)
		if err != nil {
			return err
		}
		pending = make([]domain.PendingValidation, 0, len(submissions))
		for _, submission := range submissions {
			item := domain.PendingValidation{
				Submission:     submission,
				UserLabel:      domain.UnknownUserLabel,
				ChallengeTitle: domain.UnknownChallengeTitle,
			}
			enrollment, err := tx.Enrollments().Get(ctx, submission.UserChallengeID)
			switch {
			case err == nil:
				item.Enrollment = &enrollment
				item.UserLabel = enrollment.UserID.String()
				if item.ChallengeTitle, err = challengeTitle(ctx, tx, enrollment.ChallengeID); err != nil {
					return err
				}
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
			pending = append(pending, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// ListUserChallenges returns the user's enrollments, newest first.
func (s *ChallengeService) ListUserChallenges(ctx context.Context, userID uuid.UUID) ([]domain.EnrollmentView, error) {
	var views []domain.EnrollmentView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		enrollments, err := tx.Enrollments().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		views = make([]domain.EnrollmentView, 0, len(enrollments))
		for _, enrollment := range enrollments {
			title, err := challengeTitle(ctx, tx, enrollment.ChallengeID)
			if err != nil {
				return err
			}
			views = append(views, domain.EnrollmentView{UserChallenge: enrollment, ChallengeTitle: title})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ListSubmissions returns the evidence history of the caller's enrollment in submission order.
func (s *ChallengeService) ListSubmissions(ctx context.Context, userID, enrollmentID uuid.UUID) ([]domain.ChallengeSubmission, error) {
	var submissions []domain.ChallengeSubmission
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		enrollment, err := tx.Enrollments().Get(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.UserID != userID {
			return domain.ErrNotEnrollmentOwner
		}
		submissions, err = tx.Submissions().ListByEnrollment(ctx, enrollmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

// ListTutorSubmissions returns the tutor submissions recorded for a minor.
func (s *ChallengeService) ListTutorSubmissions(ctx context.Context, minorUserID uuid.UUID) ([]domain.TutorSubmission, error) {
	var records []domain.TutorSubmission
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		records, err = tx.TutorSubmissions().ListByMinor(ctx, minorUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func challengeTitle(ctx context.Context, tx Tx, challengeID uuid.UUID) (string, error) {
	challenge, err := tx.Challenges().Get(ctx, challengeID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UnknownChallengeTitle, nil
	}
	if err != nil {
		return "", err
	}
	return challenge.Title, nil
}
