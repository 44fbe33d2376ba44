package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// EXIT DECISION METRICS
// ============================================================================

// EvaluationsTotal counts per-tick exit evaluations by symbol.
var EvaluationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "evaluations_total",
		Help:      "Total number of per-tick position evaluations",
	},
	[]string{"symbol"},
)

// EvaluationDuration tracks how long a single evaluation takes.
// Evaluations are pure computation, so buckets sit well under a millisecond.
var EvaluationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent evaluating a position tick",
		Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
	},
)

// StopMovesTotal counts protective stop movements by kind.
var StopMovesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "stop_moves_total",
		Help:      "Total number of stop-loss movements",
	},
	[]string{"symbol", "kind"}, // kind: breakeven, stepped, atr
)

// ExitSignalsTotal counts close recommendations by reason.
var ExitSignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "exit_signals_total",
		Help:      "Total number of close recommendations",
	},
	[]string{"symbol", "reason"},
)

// PartialClosesTotal counts take-profit level fills.
var PartialClosesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "partial_closes_total",
		Help:      "Total number of partial take-profit closes",
	},
	[]string{"symbol"},
)

// EmergencyExitsTotal counts emergency exit triggers.
var EmergencyExitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "exit",
		Name:      "emergency_exits_total",
		Help:      "Total number of emergency exit triggers",
	},
	[]string{"symbol", "trigger"}, // trigger: volume_drop, adverse_news, excessive_loss
)

// ============================================================================
// ADMISSION METRICS
// ============================================================================

// AdmissionsTotal counts admitted positions by sizing method.
var AdmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "admission",
		Name:      "admitted_total",
		Help:      "Total number of admitted positions",
	},
	[]string{"symbol", "method"},
)

// AdmissionRejectionsTotal counts rejected admissions by gate.
var AdmissionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "risk_engine",
		Subsystem: "admission",
		Name:      "rejections_total",
		Help:      "Total number of rejected position admissions",
	},
	[]string{"reason"}, // reason: account, correlation, sizing, levels
)

// ============================================================================
// PORTFOLIO STATE METRICS
// ============================================================================

// OpenPositions is the current number of open positions.
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "risk_engine",
		Subsystem: "portfolio",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// AccountBalance is the current account balance in quote currency.
var AccountBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "risk_engine",
		Subsystem: "portfolio",
		Name:      "account_balance",
		Help:      "Current account balance in quote currency",
	},
)

// CorrelationCacheEntries is the current correlation cache size.
var CorrelationCacheEntries = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "risk_engine",
		Subsystem: "correlation",
		Name:      "cache_entries",
		Help:      "Current number of cached pair correlations",
	},
)

// ============================================================================
// RECORDING HELPERS
// ============================================================================

// RecordEvaluation records one evaluation and its duration.
func RecordEvaluation(symbol string, seconds float64) {
	EvaluationsTotal.WithLabelValues(symbol).Inc()
	EvaluationDuration.Observe(seconds)
}

// RecordStopMove records a stop movement of the given kind.
func RecordStopMove(symbol, kind string) {
	StopMovesTotal.WithLabelValues(symbol, kind).Inc()
}

// RecordExitSignal records a close recommendation.
func RecordExitSignal(symbol, reason string) {
	ExitSignalsTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordPartialClose records a take-profit level fill.
func RecordPartialClose(symbol string) {
	PartialClosesTotal.WithLabelValues(symbol).Inc()
}

// RecordEmergencyExit records an emergency exit trigger.
func RecordEmergencyExit(symbol, trigger string) {
	EmergencyExitsTotal.WithLabelValues(symbol, trigger).Inc()
}

// RecordAdmission records an admitted position.
func RecordAdmission(symbol, method string) {
	AdmissionsTotal.WithLabelValues(symbol, method).Inc()
}

// RecordAdmissionRejection records a rejected admission.
func RecordAdmissionRejection(reason string) {
	AdmissionRejectionsTotal.WithLabelValues(reason).Inc()
}

// UpdateOpenPositions sets the open position gauge.
func UpdateOpenPositions(count int) {
	OpenPositions.Set(float64(count))
}

// UpdateAccountBalance sets the account balance gauge.
func UpdateAccountBalance(balance float64) {
	AccountBalance.Set(balance)
}

// UpdateCorrelationCacheEntries sets the correlation cache size gauge.
func UpdateCorrelationCacheEntries(count int) {
	CorrelationCacheEntries.Set(float64(count))
}
