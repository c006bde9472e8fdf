package app

import (
	"time"

	"learning-progress-service/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPassPercentage applies to quizzes that do not configure their own threshold.
	DefaultPassPercentage = 70.0
	// DefaultCompletionScore is the validation score at which an enrollment completes.
	DefaultCompletionScore = 70.0
)

// Option configures the engines.
type Option func(*options)

type options struct {
	now             func() time.Time
	newToken        func() string
	logger          *zap.Logger
	metrics         *metrics.Metrics
	ledger          PointsLedger
	passPercentage  float64
	completionScore float64
}

func defaultOptions() options {
	return options{
		now:             time.Now,
		newToken:        uuid.NewString,
		logger:          zap.NewNop(),
		passPercentage:  DefaultPassPercentage,
		completionScore: DefaultCompletionScore,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenGenerator overrides how session tokens are generated.
func WithTokenGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newToken = gen
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLedger enables leaderboard updates after points are awarded.
func WithLedger(ledger PointsLedger) Option {
	return func(o *options) {
		o.ledger = ledger
	}
}

// WithDefaultPassPercentage sets the threshold used when a quiz has none configured.
func WithDefaultPassPercentage(pct float64) Option {
	return func(o *options) {
		if pct > 0 {
			o.passPercentage = pct
		}
	}
}

// WithCompletionScore sets the validation score that completes an enrollment.
func WithCompletionScore(score float64) Option {
	return func(o *options) {
		if score > 0 {
			o.completionScore = score
		}
	}
}
