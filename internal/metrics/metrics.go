package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Brownie44l1/animal-api/internal/model"
)

const namespace = "animal"

// Metrics records prediction outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	predictions  *prometheus.CounterVec
	bucketHits   *prometheus.CounterVec
	inference    prometheus.Histogram
	cacheLookups *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions by outcome (matched, empty, error)",
		}, []string{"outcome"}),
		bucketHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bucket_matches_total",
			Help:      "How often each animal bucket appears in a result",
		}, []string{"bucket"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent preprocessing and running the model",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result (hit, miss)",
		}, []string{"result"}),
	}
	reg.MustRegister(m.predictions, m.bucketHits, m.inference, m.cacheLookups)
	return m
}

// ObservePrediction records one finished prediction. err takes precedence over result.
func (m *Metrics) ObservePrediction(result []model.Prediction, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.inference.Observe(took.Seconds())

	switch {
	case err != nil:
		m.predictions.WithLabelValues("error").Inc()
	case len(result) == 0:
		m.predictions.WithLabelValues("empty").Inc()
	default:
		m.predictions.WithLabelValues("matched").Inc()
		for _, p := range result {
			m.bucketHits.WithLabelValues(p.Label).Inc()
		}
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}
