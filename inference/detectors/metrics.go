package detectors

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeDelivered = "delivered"
	outcomeRejected  = "rejected"
)

// Metrics counts frames and candidates flowing through a Detector. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	frames     *prometheus.CounterVec
	candidates *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the detector collectors and registers them on reg.
//
// Arguments:
//   - reg: The registerer, usually a prometheus.NewRegistry() owned by the caller.
//
// Returns:
//   - *Metrics: The registered collectors.
//   - error: An error if any collector is already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detect_frames_total",
			Help: "Frames processed by the detector, by output format and outcome.",
		}, []string{"format", "outcome"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detect_candidates_total",
			Help: "Candidates emitted by the decoders and kept by suppression.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detect_duration_seconds",
			Help:    "Time spent decoding and suppressing one frame.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.frames, m.candidates, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeFrame(format, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(format, outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeCandidates(stage Stage, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(stage.String()).Add(float64(n))
}
