// Package metrics exposes Prometheus instruments for provider calls and runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Recorder holds the benchmark instruments registered on one registry.
type Recorder struct {
	Calls     *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Tokens    *prometheus.CounterVec
	Cost      *prometheus.CounterVec
	Quality   *prometheus.HistogramVec
	Runs      *prometheus.CounterVec
	ActiveRun prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscope_provider_calls_total",
				Help: "Provider calls by outcome status",
			},
			[]string{"provider", "analysis_type", "status"},
		),
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandscope_provider_call_duration_seconds",
				Help:    "Latency of successful provider calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"provider"},
		),
		Tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscope_provider_tokens_total",
				Help: "Tokens consumed by provider and direction",
			},
			[]string{"provider", "direction"},
		),
		Cost: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscope_provider_cost_usd_total",
				Help: "Estimated spend in USD by provider",
			},
			[]string{"provider"},
		),
		Quality: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandscope_answer_quality_score",
				Help:    "Quality score of successful answers",
				Buckets: prometheus.LinearBuckets(0, 0.25, 5),
			},
			[]string{"provider", "analysis_type"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandscope_runs_total",
				Help: "Completed batch runs by final status",
			},
			[]string{"status"},
		),
		ActiveRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "brandscope_run_active",
			Help: "1 while a batch run is in progress",
		}),
	}
}

// Default is registered on the global Prometheus registry.
var Default = New(prometheus.DefaultRegisterer)

// ObserveCall records one provider result. It matches the dispatcher's
// observer signature.
func (r *Recorder) ObserveCall(q question.Question, res provider.Result) {
	name := string(res.Provider)
	r.Calls.WithLabelValues(name, string(q.Type), string(res.Status)).Inc()
	if !res.OK() || res.Cached {
		return
	}
	r.Latency.WithLabelValues(name).Observe(float64(res.LatencyMs) / 1000)
	r.Tokens.WithLabelValues(name, "in").Add(float64(res.TokensIn))
	r.Tokens.WithLabelValues(name, "out").Add(float64(res.TokensOut))
	r.Cost.WithLabelValues(name).Add(res.Cost)
}

// ObserveQuality records the validation score of a successful answer.
func (r *Recorder) ObserveQuality(q question.Question, name provider.Name, v quality.Result) {
	r.Quality.WithLabelValues(string(name), string(q.Type)).Observe(v.Score)
}

// RunStarted marks a run as in progress.
func (r *Recorder) RunStarted() { r.ActiveRun.Set(1) }

// RunFinished clears the in-progress gauge and counts the run.
func (r *Recorder) RunFinished(status string) {
	r.ActiveRun.Set(0)
	r.Runs.WithLabelValues(status).Inc()
}
