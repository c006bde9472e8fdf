package http

import (
	"encoding/json"
	"net/http"

	"learning-progress-service/internal/app"
	"learning-progress-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AttemptStream runs a whole quiz attempt over one websocket: it starts a session on
// connect, scores each "answer" message and pushes the results read model on completion.
type AttemptStream struct {
	service  *app.QuizService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewAttemptStream(service *app.QuizService, logger *zap.Logger) *AttemptStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptStream{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type startedPayload struct {
	Session domain.QuizSession `json:"session"`
	Quiz    quizView           `json:"quiz"`
}

type answerResult struct {
	QuestionID        uuid.UUID `json:"questionId"`
	Correct           bool      `json:"correct"`
	Awarded           int       `json:"awarded"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	QuestionsTotal    int       `json:"questionsTotal"`
	PercentageScore   float64   `json:"percentageScore"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS expects ?quizId= and an authenticated caller (see auth.JWT).
func (h *AttemptStream) ServeWS(c *gin.Context) {
	quizID, err := uuid.Parse(c.Query("quizId"))
	if err != nil {
		c.String(http.StatusBadRequest, "missing or invalid quizId")
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Start before upgrading so unknown quizzes surface as plain HTTP errors.
	session, err := h.service.StartSession(ctx, userID, quizID)
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	quiz, err := h.service.Quiz(ctx, quizID)
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	// Single writer goroutine; gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}()

	// push never blocks once the writer has gone away.
	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	push(outboundMessage{Type: "started", Payload: startedPayload{Session: session, Quiz: newQuizView(quiz)}})

	for session.Active() {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type != "answer" {
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
			continue
		}
		var req answerRequest
		if err := json.Unmarshal(inbound.Payload, &req); err != nil {
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
			continue
		}
		submission, err := req.toSubmission(session.ID, userID)
		if err != nil {
			push(errorMessage(err))
			continue
		}
		answer, updated, err := h.service.SubmitAnswer(ctx, submission)
		if err != nil {
			push(errorMessage(err))
			continue
		}
		session = updated
		push(outboundMessage{Type: "answerResult", Payload: answerResult{
			QuestionID:        answer.QuestionID,
			Correct:           answer.IsCorrect,
			Awarded:           answer.PointsEarned,
			QuestionsAnswered: session.QuestionsAnswered,
			QuestionsTotal:    session.QuestionsTotal,
			PercentageScore:   session.PercentageScore,
		}})
	}

	if !session.Active() {
		results, err := h.service.GetResults(ctx, session.ID, userID)
		if err != nil {
			push(errorMessage(err))
		} else {
			push(outboundMessage{Type: "completed", Payload: results})
		}
	}

	close(send)
	<-writerDone
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
