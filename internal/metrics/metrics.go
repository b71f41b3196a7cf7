package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SearchRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkloom_search_runs_total",
		Help: "Total topic searches",
	})
	SearchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkloom_search_errors_total",
		Help: "Total topic searches that failed",
	})
	SearchFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkloom_search_fallbacks_total",
		Help: "Searches answered by the unfiltered fallback",
	})
	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkloom_search_duration_seconds",
		Help:    "Topic search duration seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})
	PoolSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkloom_pool_candidates",
		Help:    "Unique candidates pooled per search",
		Buckets: prometheus.ExponentialBuckets(10, 3, 8),
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_llm_calls_total",
		Help: "LLM calls by model and outcome",
	}, []string{"model", "outcome"})
	AlignChunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_align_chunks_total",
		Help: "Bio alignment chunks by outcome",
	}, []string{"outcome"})
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_cache_lookups_total",
		Help: "Follower cache lookups by tier and result",
	}, []string{"tier", "result"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkloom_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		SearchRuns, SearchErrors, SearchFallbacks, SearchDuration, PoolSize,
		APIRetries, LLMCalls, AlignChunks, CacheLookups, CommandRuns, CommandErrors,
	)
}

// ObserveSearchDuration records a search duration.
func ObserveSearchDuration(start time.Time) {
	SearchDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncLLMCall(model, outcome string) { LLMCalls.WithLabelValues(model, outcome).Inc() }

func IncAlignChunk(outcome string) { AlignChunks.WithLabelValues(outcome).Inc() }

func IncCacheLookup(tier, result string) { CacheLookups.WithLabelValues(tier, result).Inc() }

func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
