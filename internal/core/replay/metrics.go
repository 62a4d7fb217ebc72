package replay

import "github.com/prometheus/client_golang/prometheus"

// Prometheus 指标：观测回放吞吐、得分分布与缓存命中
var (
	replaysTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_replay_total",
		Help: "Total number of replayed transactions, labeled by outcome.",
	}, []string{"outcome"})

	replayDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "svm_replay_duration_seconds",
		Help:    "Duration of a single transaction replay.",
		Buckets: prometheus.DefBuckets,
	})

	replayScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "svm_replay_score",
		Help:    "Match score distribution of replayed transactions.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	replayCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_replay_cache_hits_total",
		Help: "Total number of record cache hits, labeled by tier.",
	}, []string{"tier"})

	replayBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "svm_replay_batches_total",
		Help: "Total number of batch replay jobs.",
	})
)

func init() {
	prometheus.MustRegister(
		replaysTotal,
		replayDuration,
		replayScore,
		replayCacheHits,
		replayBatches,
	)
}
