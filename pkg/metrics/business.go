package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Harvesting metrics
	HarvestingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tax_harvesting_runs_total",
			Help: "Total number of suggestion generation runs",
		},
		[]string{"status"}, // success, failed, rejected
	)

	HarvestingRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tax_harvesting_run_duration_seconds",
			Help:    "Time to load inputs, generate and persist suggestions",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SuggestionsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tax_suggestions_generated_total",
			Help: "Total number of harvesting suggestions generated",
		},
		[]string{"suggestion_type", "priority"},
	)

	SuggestionEstimatedSavings = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tax_suggestion_estimated_savings",
			Help:    "Distribution of estimated tax savings per suggestion",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"suggestion_type"},
	)

	SuggestionStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tax_suggestion_status_transitions_total",
			Help: "Total number of suggestion status changes",
		},
		[]string{"from", "to"},
	)

	SuggestionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tax_suggestions_expired_total",
			Help: "Total number of pending suggestions expired by the sweeper",
		},
	)

	// Jurisdiction metrics
	OptimizationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tax_optimization_requests_total",
			Help: "Total number of jurisdiction optimization requests",
		},
		[]string{"country", "status"},
	)

	RecommendationsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tax_recommendations_fired_total",
			Help: "Total number of jurisdiction rules that fired",
		},
		[]string{"country", "rule_id"},
	)
)

// RecordHarvestingRun records the outcome of one generation run
func RecordHarvestingRun(status string, duration float64) {
	HarvestingRunsTotal.WithLabelValues(status).Inc()
	HarvestingRunDuration.Observe(duration)
}

// RecordSuggestion records one generated suggestion
func RecordSuggestion(suggestionType, priority string, savings float64) {
	SuggestionsGeneratedTotal.WithLabelValues(suggestionType, priority).Inc()
	SuggestionEstimatedSavings.WithLabelValues(suggestionType).Observe(savings)
}

// RecordStatusTransition records a suggestion lifecycle move
func RecordStatusTransition(from, to string) {
	SuggestionStatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordExpiredSuggestions records suggestions moved to expired
func RecordExpiredSuggestions(count int) {
	SuggestionsExpiredTotal.Add(float64(count))
}

// RecordOptimization records a jurisdiction evaluation outcome
func RecordOptimization(country, status string) {
	OptimizationRequestsTotal.WithLabelValues(country, status).Inc()
}

// RecordRecommendation records a fired jurisdiction rule
func RecordRecommendation(country, ruleID string) {
	RecommendationsFiredTotal.WithLabelValues(country, ruleID).Inc()
}
