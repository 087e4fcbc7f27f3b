package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/gesture"
)

const namespace = "gestosongs"

// Metrics are the Prometheus instruments updated by the tick loop. A nil
// *Metrics records nothing.
type Metrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	hands        prometheus.Gauge
	gestures     *prometheus.CounterVec
	challenges   prometheus.Counter
	results      *prometheus.CounterVec
	score        prometheus.Gauge
	level        prometheus.Gauge
	streak       prometheus.Gauge
	degraded     *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Game ticks processed.",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one game tick, excluding capture.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		hands: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hands",
			Help:      "Hands seen in the last tick.",
		}),
		gestures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Touch gestures started, by hand and note.",
		}, []string{"hand", "note"}),
		challenges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Challenges generated.",
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_results_total",
			Help:      "Finished challenges, by result kind.",
		}, []string{"kind"}),
		score: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Current game score.",
		}),
		level: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level",
			Help:      "Current game level.",
		}),
		streak: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streak",
			Help:      "Current run of consecutive hits.",
		}),
		degraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_ticks_total",
			Help:      "Ticks run without hands because a collaborator failed.",
		}, []string{"source"}),
	}
}

func (m *Metrics) tickDone(hands int, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.hands.Set(float64(hands))
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) gesture(ev gesture.Event) {
	if m == nil {
		return
	}
	m.gestures.WithLabelValues(string(ev.Hand), ev.Note).Inc()
}

func (m *Metrics) challengeStarted(challenge.Challenge) {
	if m == nil {
		return
	}
	m.challenges.Inc()
}

func (m *Metrics) challengeFinished(r challenge.Result, s challenge.Stats) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(r.Kind)).Inc()
	m.score.Set(float64(s.Score))
	m.level.Set(float64(s.Level))
	m.streak.Set(float64(s.Streak))
}

func (m *Metrics) degrade(source string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(source).Inc()
}
