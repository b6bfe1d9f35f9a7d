package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	PostingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Committed ledger postings, labeled by direction and kind",
	}, []string{"direction", "kind"})

	WithdrawalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_withdrawal_transitions_total",
		Help: "Withdrawal requests entering a status",
	}, []string{"status"})

	RewardEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reward_evaluations_total",
		Help: "Grading events evaluated for a reward, labeled by source kind and outcome",
	}, []string{"source_kind", "outcome"})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operation_errors_total",
		Help: "Ledger operations that failed, labeled by operation and error kind",
	}, []string{"operation", "kind"})

	EventPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_event_publish_errors_total",
		Help: "Wallet events that could not be published after commit",
	})
)

const (
	OutcomeAwarded    = "awarded"
	OutcomeNotPassing = "not_passing"
	OutcomeDuplicate  = "duplicate"
)
