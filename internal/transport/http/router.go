package http

import (
	"net/http"
	"time"

	"learning-progress-service/internal/auth"
	"learning-progress-service/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handler        *Handler
	Stream         *AttemptStream
	JWT            *auth.JWTService
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter wires middleware and every route of the public API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(requestMetrics(cfg.Metrics))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authn := auth.JWT(cfg.JWT)
	if cfg.Stream != nil {
		r.GET("/ws/attempts", authn, cfg.Stream.ServeWS)
	}

	h := cfg.Handler
	api := r.Group("/api/v1", authn)
	{
		api.GET("/quizzes/:quizId", h.GetQuiz)
		api.POST("/quizzes/:quizId/sessions", h.StartSession)
		api.POST("/quizzes/:quizId/refresh", auth.RequireRole(auth.RoleModerator), h.RefreshQuiz)
		api.POST("/sessions/:sessionId/answers", h.SubmitAnswer)
		api.GET("/sessions/:sessionId/results", h.GetResults)
		api.GET("/sessions/by-token/:token", h.GetSessionByToken)
		api.GET("/users/:userId/quiz-progress", h.GetUserProgress)
		api.GET("/leaderboard", h.Leaderboard)

		api.POST("/challenges/:challengeId/join", h.JoinChallenge)
		api.POST("/challenges/:challengeId/tutor-submissions", auth.RequireRole(auth.RoleTutor), h.TutorSubmit)
		api.POST("/enrollments/:enrollmentId/evidence", h.SubmitEvidence)
		api.GET("/enrollments/:enrollmentId/submissions", h.ListSubmissions)
		api.GET("/users/:userId/challenges", h.ListUserChallenges)
		api.GET("/users/:userId/tutor-submissions", auth.RequireRole(auth.RoleTutor, auth.RoleModerator), h.ListTutorSubmissions)
		api.POST("/evidence/upload-url", h.EvidenceUploadURL)

		moderation := api.Group("/submissions", auth.RequireRole(auth.RoleModerator))
		moderation.GET("/pending", h.ListPending)
		moderation.POST("/:submissionId/validate", h.ValidateSubmission)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
