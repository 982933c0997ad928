package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ModOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modsync",
			Name:      "mod_outcomes_total",
			Help:      "Count of per-mod pipeline outcomes by game and status.",
		},
		[]string{"game", "status"},
	)

	Installs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modsync",
			Name:      "installs_total",
			Help:      "Count of per-mod install attempts by game and result.",
		},
		[]string{"game", "result"},
	)

	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modsync",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of archive fetches including redirects.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
		},
		[]string{"result"},
	)

	FetchedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modsync",
			Name:      "fetched_bytes_total",
			Help:      "Bytes written to disk by the fetcher.",
		},
	)

	ActiveFetches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modsync",
			Name:      "active_fetches",
			Help:      "Number of fetches currently streaming.",
		},
	)
)

// Registry holds the modsync collectors. It is separate from the default
// registry so the textfile export only carries modsync series.
var Registry = prometheus.NewRegistry()

var registerOnce sync.Once

// Register registers the modsync metrics into Registry. Repeated calls are
// no-ops.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(ModOutcomes, Installs, FetchLatency, FetchedBytes, ActiveFetches)
	})
}

// WriteTextfile writes the current state of Registry in the node-exporter
// textfile format. The write is atomic.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
