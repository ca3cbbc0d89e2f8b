package prioritize

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the prioritization subsystem.
type Metrics struct {
	RunsTotal        prometheus.Counter
	RunDuration      *prometheus.HistogramVec
	RunLLMTime       *prometheus.HistogramVec
	RunMessages      prometheus.Histogram
	RunTokensIn      prometheus.Histogram
	RunTokensOut     prometheus.Histogram
	BatchesTotal     *prometheus.CounterVec
	BatchAttempts    prometheus.Histogram
	LLMCallsTotal    prometheus.Counter
	LLMTokensIn      prometheus.Counter
	LLMTokensOut     prometheus.Counter
	LLMDuration      prometheus.Histogram
	MessagesScored   *prometheus.CounterVec
	AdjustmentsTotal *prometheus.CounterVec
	SubmitsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns prioritization metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_runs_total",
			Help: "Total prioritization runs.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_run_duration_seconds",
			Help:    "Duration of prioritization runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"model"}),
		RunLLMTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_run_llm_time_seconds",
			Help:    "Total LLM time per run in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"model"}),
		RunMessages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_run_messages",
			Help:    "Messages scored per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
		RunTokensIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_run_tokens_input",
			Help:    "Input tokens consumed per run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12), // 100 .. ~409600
		}),
		RunTokensOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_run_tokens_output",
			Help:    "Output tokens consumed per run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12), // 100 .. ~409600
		}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_batches_total",
			Help: "Total scored batches by outcome (model or fallback).",
		}, []string{"outcome"}),
		BatchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_batch_attempts",
			Help:    "Scoring attempts used per batch.",
			Buckets: prometheus.LinearBuckets(1, 1, 5), // 1 .. 5
		}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_llm_calls_total",
			Help: "Total LLM provider calls.",
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		MessagesScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_messages_scored_total",
			Help: "Total messages scored by final category and score source.",
		}, []string{"category", "source"}),
		AdjustmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_adjustments_total",
			Help: "Total multiplier adjustments applied by rule.",
		}, []string{"rule"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_submits_total",
			Help: "Total message submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunLLMTime,
		m.RunMessages,
		m.RunTokensIn,
		m.RunTokensOut,
		m.BatchesTotal,
		m.BatchAttempts,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.MessagesScored,
		m.AdjustmentsTotal,
		m.SubmitsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnLLMCall: func(inputTokens, outputTokens int, duration float64) {
			m.LLMCallsTotal.Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.Observe(duration)
		},
		OnBatch: func(_, attempts int, fellBack bool) {
			outcome := "model"
			if fellBack {
				outcome = "fallback"
			}
			m.BatchesTotal.WithLabelValues(outcome).Inc()
			m.BatchAttempts.Observe(float64(attempts))
		},
		OnComplete: func(e *CompleteEvent) {
			m.RunsTotal.Inc()
			m.RunDuration.WithLabelValues(e.Model).Observe(e.Duration)
			m.RunLLMTime.WithLabelValues(e.Model).Observe(e.LLMTime)
			m.RunMessages.Observe(float64(e.Messages))
			m.RunTokensIn.Observe(float64(e.TokensIn))
			m.RunTokensOut.Observe(float64(e.TokensOut))
		},
	}
}

// ObserveScored counts one finalized message toward the category/source and
// adjustment counters. Called by the service after persistence.
func (m *Metrics) ObserveScored(sm *ScoredMessage) {
	m.MessagesScored.WithLabelValues(string(sm.Category), string(sm.Source)).Inc()
	for _, adj := range sm.Adjustments {
		m.AdjustmentsTotal.WithLabelValues(adjustmentRule(adj)).Inc()
	}
}

// adjustmentRule strips the multiplier suffix from a trail entry so the
// metric label stays low-cardinality ("muted channel ×0.5" -> "muted channel").
func adjustmentRule(adj string) string {
	if i := strings.IndexRune(adj, '×'); i >= 0 {
		return strings.TrimRight(adj[:i], " ")
	}
	if i := strings.IndexRune(adj, '('); i >= 0 {
		return strings.TrimRight(adj[:i], " ")
	}
	return adj
}
