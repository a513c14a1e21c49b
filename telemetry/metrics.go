// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    once sync.Once

    // Counters
    MessagesEvaluated prometheus.Counter
    MessagesIncluded  prometheus.Counter
    MessagesExcluded  prometheus.Counter
    PatchesPublished  prometheus.Counter
    SnapshotsServed   prometheus.Counter
    BadgeFetchFailed  prometheus.Counter

    // Histograms (seconds)
    EvaluateDuration   prometheus.Observer
    BadgeFetchDuration prometheus.Observer

    // Gauges
    CachedGroupsGauge   prometheus.Gauge
    ConnectedPeersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
    once.Do(func() {
        MessagesEvaluated = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_evaluated_total", Help: "Number of chat messages run through the filter evaluator"})
        MessagesIncluded = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_included_total", Help: "Number of chat messages the evaluator decided to show"})
        MessagesExcluded = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_excluded_total", Help: "Number of chat messages the evaluator decided to hide"})
        PatchesPublished = promauto.NewCounter(prometheus.CounterOpts{Name: "filter_patches_published_total", Help: "Number of runtime cache patches posted over the messaging channel"})
        SnapshotsServed = promauto.NewCounter(prometheus.CounterOpts{Name: "filter_snapshots_served_total", Help: "Number of full runtime snapshots served to freshly attached evaluators"})
        BadgeFetchFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "global_badge_fetch_failed_total", Help: "Number of failed global chat badge refreshes"})
        EvaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_evaluate_duration_seconds", Help: "Per-message evaluation duration seconds", Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10)})
        BadgeFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "global_badge_fetch_duration_seconds", Help: "Global chat badge refresh duration seconds", Buckets: prometheus.DefBuckets})
        CachedGroupsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "filter_cached_groups", Help: "Current number of filter groups in the runtime cache"})
        ConnectedPeersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "messaging_connected_peers", Help: "Current number of connected messaging peers"})
    })
}

// RecordEvaluation counts one evaluated message and its outcome.
func RecordEvaluation(included bool) {
    if MessagesEvaluated == nil { return }
    MessagesEvaluated.Inc()
    if included { MessagesIncluded.Inc() } else { MessagesExcluded.Inc() }
}

// IncPatchesPublished counts one published runtime patch.
func IncPatchesPublished() { if PatchesPublished != nil { PatchesPublished.Inc() } }

// IncSnapshotsServed counts one served runtime snapshot.
func IncSnapshotsServed() { if SnapshotsServed != nil { SnapshotsServed.Inc() } }

// SetCachedGroups records the current runtime cache size.
func SetCachedGroups(n int) { if CachedGroupsGauge != nil { CachedGroupsGauge.Set(float64(n)) } }

// AddConnectedPeer adjusts the connected peer gauge by delta.
func AddConnectedPeer(delta int) { if ConnectedPeersGauge != nil { ConnectedPeersGauge.Add(float64(delta)) } }

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
    start := time.Now()
    fn()
    d := time.Since(start)
    if obs != nil { obs.Observe(d.Seconds()) }
    return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}
var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
    v := ctx.Value(corrKey)
    if s, ok := v.(string); ok { return s }
    return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
    if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
    return slog.Default()
}
