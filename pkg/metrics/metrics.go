package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Space/op metrics
	SpacesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "holochain_spaces_total",
			Help: "Total number of spaces (DNAs) registered",
		},
	)

	OpsByStage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holochain_ops_by_stage",
			Help: "Number of DhtOps currently at each validation stage, by dna",
		},
		[]string{"dna", "stage"},
	)

	OpsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_ops_rejected_total",
			Help: "Total number of ops rejected by sys or app validation",
		},
		[]string{"dna", "workflow"},
	)

	OpsIntegratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_ops_integrated_total",
			Help: "Total number of ops that reached Integrated",
		},
		[]string{"dna"},
	)

	WarrantsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "holochain_warrants_issued_total",
			Help: "Total number of chain-integrity warrants authored by this node",
		},
	)

	// Validation workflow metrics
	SysValidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holochain_sys_validation_batch_duration_seconds",
			Help:    "Time taken to sys-validate one batch of ops",
			Buckets: prometheus.DefBuckets,
		},
	)

	AppValidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holochain_app_validation_batch_duration_seconds",
			Help:    "Time taken to app-validate one batch of ops",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Fetch pool metrics
	FetchPoolDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holochain_fetch_pool_depth",
			Help: "Number of items currently queued in the fetch pool, by dna",
		},
		[]string{"dna"},
	)

	FetchesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_fetches_completed_total",
			Help: "Total number of fetch pool items resolved, by outcome",
		},
		[]string{"outcome"},
	)

	// Gossip metrics
	GossipRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_gossip_rounds_total",
			Help: "Total number of gossip rounds, by module and outcome",
		},
		[]string{"module", "outcome"},
	)

	GossipRoundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holochain_gossip_round_duration_seconds",
			Help:    "Duration of a completed gossip round, by module",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"module"},
	)

	GossipOpsExchangedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_gossip_ops_exchanged_total",
			Help: "Total number of op hashes exchanged over gossip, by direction",
		},
		[]string{"direction"},
	)

	// Storage metrics
	DbTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holochain_db_transaction_duration_seconds",
			Help:    "Duration of a storage engine transaction, by database kind and mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "mode"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_cache_hits_total",
			Help: "Cascade cache layer hit/miss count, by result",
		},
		[]string{"result"},
	)

	// Network metrics
	NetworkPeersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "holochain_network_peers_connected",
			Help: "Number of peer connections currently open",
		},
	)

	NetworkMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_network_messages_total",
			Help: "Total number of wire messages sent or received, by direction and kind",
		},
		[]string{"direction", "kind"},
	)

	NetworkRPCErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holochain_network_rpc_errors_total",
			Help: "Total number of RPC failures, by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(SpacesTotal)
	prometheus.MustRegister(OpsByStage)
	prometheus.MustRegister(OpsRejectedTotal)
	prometheus.MustRegister(OpsIntegratedTotal)
	prometheus.MustRegister(WarrantsIssuedTotal)
	prometheus.MustRegister(SysValidationDuration)
	prometheus.MustRegister(AppValidationDuration)
	prometheus.MustRegister(FetchPoolDepth)
	prometheus.MustRegister(FetchesCompletedTotal)
	prometheus.MustRegister(GossipRoundsTotal)
	prometheus.MustRegister(GossipRoundDuration)
	prometheus.MustRegister(GossipOpsExchangedTotal)
	prometheus.MustRegister(DbTransactionDuration)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(NetworkPeersConnected)
	prometheus.MustRegister(NetworkMessagesTotal)
	prometheus.MustRegister(NetworkRPCErrorsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
