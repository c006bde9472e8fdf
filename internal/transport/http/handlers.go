package http

import (
	"context"
	"strconv"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/auth"
	"learning-progress-service/internal/domain"
	"learning-progress-service/internal/response"
	"learning-progress-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// EvidencePresigner issues direct-upload URLs for evidence media.
type EvidencePresigner interface {
	PresignUpload(ctx context.Context, userID uuid.UUID, contentType string) (storage.UploadURL, error)
}

// Handler exposes the quiz and challenge engines over REST.
type Handler struct {
	quizzes    *app.QuizService
	challenges *app.ChallengeService
	media      EvidencePresigner
	logger     *zap.Logger
}

func NewHandler(quizzes *app.QuizService, challenges *app.ChallengeService, media EvidencePresigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{quizzes: quizzes, challenges: challenges, media: media, logger: logger}
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, domain.ErrInvalidID.Error())
		return uuid.Nil, false
	}
	return id, true
}

func caller(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
	}
	return id, ok
}

// selfOr allows the request when the caller is the path user or holds one of roles.
func selfOr(c *gin.Context, userID uuid.UUID, roles ...string) bool {
	callerID, ok := caller(c)
	if !ok {
		return false
	}
	if callerID == userID {
		return true
	}
	role := auth.Role(c)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	response.Forbidden(c, "insufficient permissions")
	return false
}

func (h *Handler) GetQuiz(c *gin.Context) {
	quizID, ok := pathID(c, "quizId")
	if !ok {
		return
	}
	quiz, err := h.quizzes.Quiz(c.Request.Context(), quizID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, newQuizView(quiz))
}

func (h *Handler) RefreshQuiz(c *gin.Context) {
	quizID, ok := pathID(c, "quizId")
	if !ok {
		return
	}
	quiz, err := h.quizzes.RefreshQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, newQuizView(quiz))
}

func (h *Handler) StartSession(c *gin.Context) {
	quizID, ok := pathID(c, "quizId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	session, err := h.quizzes.StartSession(c.Request.Context(), userID, quizID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, session)
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	submission, err := req.toSubmission(sessionID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	answer, session, err := h.quizzes.SubmitAnswer(c.Request.Context(), submission)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, answerResponse{Answer: answer, Session: session})
}

func (h *Handler) GetResults(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	results, err := h.quizzes.GetResults(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, results)
}

func (h *Handler) GetSessionByToken(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	session, err := h.quizzes.GetSessionByToken(c.Request.Context(), c.Param("token"), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, session)
}

func (h *Handler) GetUserProgress(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok || !selfOr(c, userID, auth.RoleTutor, auth.RoleModerator) {
		return
	}
	progress, err := h.quizzes.GetUserProgress(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, progress)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	entries, err := h.quizzes.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, entries)
}

func (h *Handler) JoinChallenge(c *gin.Context) {
	challengeID, ok := pathID(c, "challengeId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	enrollment, err := h.challenges.Join(c.Request.Context(), userID, challengeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, enrollment)
}

func (h *Handler) SubmitEvidence(c *gin.Context) {
	enrollmentID, ok := pathID(c, "enrollmentId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req evidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	submission, err := h.challenges.SubmitEvidence(c.Request.Context(), userID, enrollmentID, req.toEvidence())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, submission)
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	enrollmentID, ok := pathID(c, "enrollmentId")
	if !ok {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	submissions, err := h.challenges.ListSubmissions(c.Request.Context(), userID, enrollmentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, submissions)
}

func (h *Handler) TutorSubmit(c *gin.Context) {
	challengeID, ok := pathID(c, "challengeId")
	if !ok {
		return
	}
	tutorID, ok := caller(c)
	if !ok {
		return
	}
	var req tutorSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	minorID, err := uuid.Parse(req.MinorUserID)
	if err != nil {
		h.fail(c, domain.ErrInvalidID)
		return
	}
	result, err := h.challenges.TutorSubmit(c.Request.Context(), app.TutorSubmitRequest{
		MinorUserID:        minorID,
		TutorUserID:        tutorID,
		ChallengeID:        challengeID,
		Evidence:           req.Evidence.toEvidence(),
		Confirmation:       req.TutorConfirmation,
		PointsDistribution: req.PointsDistribution,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, result)
}

func (h *Handler) ListTutorSubmissions(c *gin.Context) {
	minorID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	submissions, err := h.challenges.ListTutorSubmissions(c.Request.Context(), minorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, submissions)
}

func (h *Handler) ValidateSubmission(c *gin.Context) {
	submissionID, ok := pathID(c, "submissionId")
	if !ok {
		return
	}
	validatorID, ok := caller(c)
	if !ok {
		return
	}
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.challenges.Validate(c.Request.Context(), app.ValidateRequest{
		SubmissionID: submissionID,
		Score:        *req.Score,
		Notes:        req.Notes,
		ValidatorID:  validatorID,
		BonusPoints:  req.BonusPoints,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) ListPending(c *gin.Context) {
	pending, err := h.challenges.ListPending(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, pending)
}

func (h *Handler) ListUserChallenges(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok || !selfOr(c, userID, auth.RoleTutor, auth.RoleModerator) {
		return
	}
	enrollments, err := h.challenges.ListUserChallenges(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, enrollments)
}

func (h *Handler) EvidenceUploadURL(c *gin.Context) {
	if h.media == nil {
		response.ServiceUnavailable(c, "evidence storage not configured")
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	upload, err := h.media.PresignUpload(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, upload)
}
