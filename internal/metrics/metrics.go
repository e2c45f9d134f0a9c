// Package metrics records EigenTrust run statistics in a Prometheus
// registry and writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nvandessel/eigentrust/internal/models"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeConverged    = "converged"
	OutcomeNotConverged = "not_converged"
	OutcomeFailed       = "failed"
)

// Recorder owns a private registry so separate runs and tests never share
// collectors.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	iterations   prometheus.Gauge
	finalDelta   prometheus.Gauge
	duration     prometheus.Histogram
	peers        prometheus.Gauge
	interactions prometheus.Gauge
	peerTrust    *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eigentrust_runs_total",
				Help: "Total number of EigenTrust runs by outcome",
			},
			[]string{"outcome"},
		),
		iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigentrust_iterations",
			Help: "Power iterations performed by the most recent run",
		}),
		finalDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigentrust_final_delta",
			Help: "Distance between the last two iterates of the most recent run",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eigentrust_run_duration_seconds",
			Help:    "Wall time of EigenTrust runs",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigentrust_peers",
			Help: "Peers in the most recent run",
		}),
		interactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigentrust_interactions",
			Help: "Interactions in the most recent run",
		}),
		peerTrust: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eigentrust_peer_trust",
				Help: "Global trust score per peer from the most recent run",
			},
			[]string{"peer_id"},
		),
	}
	r.registry.MustRegister(r.runs, r.iterations, r.finalDelta, r.duration, r.peers, r.interactions, r.peerTrust)
	return r
}

// ObserveRun records a successful run.
func (r *Recorder) ObserveRun(scores models.TrustScores, peers, interactions int, elapsed time.Duration) {
	outcome := OutcomeNotConverged
	if scores.Converged() {
		outcome = OutcomeConverged
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.iterations.Set(float64(scores.Iterations()))
	r.finalDelta.Set(scores.FinalDelta())
	r.duration.Observe(elapsed.Seconds())
	r.peers.Set(float64(peers))
	r.interactions.Set(float64(interactions))

	r.peerTrust.Reset()
	for id, v := range scores.Scores() {
		r.peerTrust.WithLabelValues(id).Set(v)
	}
}

// ObserveFailure records a run that returned an error.
func (r *Recorder) ObserveFailure(elapsed time.Duration) {
	r.runs.WithLabelValues(OutcomeFailed).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// WriteToTextfile writes every metric to path atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
