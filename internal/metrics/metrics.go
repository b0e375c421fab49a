package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives orchestration measurements
type Recorder interface {
	ObserveExecution(taskType, model, status string, d time.Duration)
	CacheLookup(taskType string, hit bool)
	Fallback(taskType string)
	AdmissionRejected(scope string)
	Retry(taskType, class string)
	SetQueueDepth(n int64)
}

// Prometheus exports measurements through its own registry
type Prometheus struct {
	registry *prometheus.Registry

	executions       *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	retries          *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

// NewPrometheus creates and registers the orchestrator metrics
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_executions_total",
				Help: "Requests that reached a terminal state",
			},
			[]string{"task_type", "model", "status"},
		),
		executionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_execution_duration_seconds",
				Help:    "Time from processing to terminal state",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"task_type", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"task_type", "result"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_fallbacks_total",
				Help: "Executions that moved to the fallback model",
			},
			[]string{"task_type"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_admission_rejections_total",
				Help: "Admission control rejections by scope",
			},
			[]string{"scope"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_retries_total",
				Help: "Execution retries by error class",
			},
			[]string{"task_type", "class"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_queue_depth",
				Help: "Jobs waiting in the execution queue",
			},
		),
	}

	p.registry.MustRegister(
		p.executions,
		p.executionLatency,
		p.cacheLookups,
		p.fallbacks,
		p.rejections,
		p.retries,
		p.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveExecution(taskType, model, status string, d time.Duration) {
	p.executions.WithLabelValues(taskType, model, status).Inc()
	p.executionLatency.WithLabelValues(taskType, status).Observe(d.Seconds())
}

func (p *Prometheus) CacheLookup(taskType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(taskType, result).Inc()
}

func (p *Prometheus) Fallback(taskType string) {
	p.fallbacks.WithLabelValues(taskType).Inc()
}

func (p *Prometheus) AdmissionRejected(scope string) {
	p.rejections.WithLabelValues(scope).Inc()
}

func (p *Prometheus) Retry(taskType, class string) {
	p.retries.WithLabelValues(taskType, class).Inc()
}

func (p *Prometheus) SetQueueDepth(n int64) {
	p.queueDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Noop discards all measurements
type Noop struct{}

func (Noop) ObserveExecution(string, string, string, time.Duration) {}
func (Noop) CacheLookup(string, bool)                               {}
func (Noop) Fallback(string)                                        {}
func (Noop) AdmissionRejected(string)                               {}
func (Noop) Retry(string, string)                                   {}
func (Noop) SetQueueDepth(int64)                                    {}

var _ Recorder = (*Prometheus)(nil)
var _ Recorder = Noop{}
