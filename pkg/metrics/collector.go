package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/tarot-bot/internal/lifecycle"
	"github.com/Proton-105/tarot-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands and callbacks labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	questionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_transitions_total",
			Help: "Question lifecycle transitions committed to the store",
		},
		[]string{"transition"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications labeled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_checks_total",
			Help: "Rate limiter decisions",
		},
		[]string{"result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of senders with a stored conversation state",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of senders per conversation state",
		},
		[]string{"state"},
	)
)

// Question transitions.
const (
	TransitionSubmitted = "submitted"
	TransitionAnswered  = "answered"
	TransitionApproved  = "approved"
	TransitionRejected  = "rejected"
	TransitionPromoted  = "promoted"
)

// Notification outcomes.
const (
	OutcomeSent           = "sent"
	OutcomeFailed         = "failed"
	OutcomeBlocked        = "blocked"
	OutcomeShortCircuited = "short_circuited"
)

var trackedStates = []state.State{
	state.StateAskingQuestion,
	state.StateAnsweringQuestion,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	botCommandsTotal.WithLabelValues(orUnknown(command), orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(orUnknown(command)).Observe(duration.Seconds())
}

// RecordStateTransition tracks conversation state transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

func RecordQuestionTransition(transition string) {
	questionTransitionsTotal.WithLabelValues(orUnknown(transition)).Inc()
}

func RecordNotification(kind, outcome string) {
	notificationsTotal.WithLabelValues(orUnknown(kind), orUnknown(outcome)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordRateLimit counts limiter decisions ("allowed", "limited", "error").
func RecordRateLimit(result string) {
	rateLimitChecksTotal.WithLabelValues(orUnknown(result)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// StateCollector periodically gathers session state counts and emits gauge metrics.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided state machine.
func NewStateCollector(fsm state.StateMachine) *StateCollector {
	return &StateCollector{fsm: fsm, interval: 10 * time.Second}
}

// Run collects once, then every interval until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	_ = c.collect(ctx)
	lifecycle.Every(c.interval, func(ctx context.Context) { _ = c.collect(ctx) })(ctx)
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(states)))

	counts := make(map[string]int, len(states))
	for _, st := range states {
		counts[string(st.Current())]++
	}

	sessionsByState.Reset()
	for _, tracked := range trackedStates {
		label := string(tracked)
		sessionsByState.WithLabelValues(label).Set(float64(counts[label]))
		delete(counts, label)
	}
	for label, count := range counts {
		sessionsByState.WithLabelValues(label).Set(float64(count))
	}

	return nil
}
