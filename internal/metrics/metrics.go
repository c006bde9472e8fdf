package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "learning_progress"

// Metrics holds Prometheus collectors for the engines and the HTTP layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	Answers           *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec
	Joins             *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	Validations       *prometheus.CounterVec
	PointsAwarded     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "sessions_started_total",
			Help:      "Quiz attempts started",
		}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "answers_total",
			Help:      "Answers recorded, by correctness",
		}, []string{"correct"}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "sessions_completed_total",
			Help:      "Quiz attempts completed, by pass status",
		}, []string{"passed"}),
		Joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "joins_total",
			Help:      "Challenge join attempts, by outcome",
		}, []string{"outcome"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "submissions_total",
			Help:      "Evidence submissions, by source",
		}, []string{"source"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "validations_total",
			Help:      "Submission validations, by whether they completed the enrollment",
		}, []string{"completed"}),
		PointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points awarded, by source",
		}, []string{"source"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.Answers,
			m.SessionsCompleted,
			m.Joins,
			m.Submissions,
			m.Validations,
			m.PointsAwarded,
			m.RequestDuration,
		)
	}
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) AnswerRecorded(correct bool) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) SessionCompleted(passed bool, points int) {
	if m == nil {
		return
	}
	m.SessionsCompleted.WithLabelValues(strconv.FormatBool(passed)).Inc()
	m.PointsAwarded.WithLabelValues("quiz").Add(float64(points))
}

// JoinAttempted records a join outcome: "joined", "conflict", "full" or "error".
func (m *Metrics) JoinAttempted(outcome string) {
	if m == nil {
		return
	}
	m.Joins.WithLabelValues(outcome).Inc()
}

// SubmissionCreated records evidence by source: "self" or "tutor".
func (m *Metrics) SubmissionCreated(source string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(source).Inc()
}

func (m *Metrics) SubmissionValidated(completed bool, points int) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(strconv.FormatBool(completed)).Inc()
	m.PointsAwarded.WithLabelValues("challenge").Add(float64(points))
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
