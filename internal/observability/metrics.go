// Package observability provides Prometheus metrics for simulation cycles
// and OpenTelemetry tracing setup.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultBusy  = "busy"
	ResultError = "error"
)

// Collector bundles the visualiser's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Cycles            *prometheus.CounterVec
	CycleDuration     *prometheus.HistogramVec
	SimulatorDuration *prometheus.HistogramVec

	Detections   prometheus.Gauge
	Attributions prometheus.Gauge
	Simulating   prometheus.Gauge
}

// NewCollector registers metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry
// returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radarviz_cycles_total",
		Help: "Simulation trigger cycles, labeled by result.",
	}, []string{"result"}), "radarviz_cycles_total")
	if err != nil {
		return nil, err
	}

	cycleDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radarviz_cycle_duration_seconds",
		Help:    "Wall time of a trigger cycle from simulator start to redraw.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"result"}), "radarviz_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	simDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radarviz_simulator_duration_seconds",
		Help:    "Simulator process run time, labeled by runner.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"runner"}), "radarviz_simulator_duration_seconds")
	if err != nil {
		return nil, err
	}

	detections, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radarviz_detections",
		Help: "Detection markers currently drawn.",
	}), "radarviz_detections")
	if err != nil {
		return nil, err
	}
	attributions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radarviz_attribution_segments",
		Help: "Cumulative attribution segments drawn.",
	}), "radarviz_attribution_segments")
	if err != nil {
		return nil, err
	}
	simulating, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radarviz_simulating",
		Help: "1 while a simulation cycle is in progress.",
	}), "radarviz_simulating")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Cycles:            cycles,
		CycleDuration:     cycleDuration,
		SimulatorDuration: simDuration,
		Detections:        detections,
		Attributions:      attributions,
		Simulating:        simulating,
	}, nil
}

// ObserveCycle records one finished (or rejected) trigger cycle.
func (c *Collector) ObserveCycle(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(result).Inc()
	if result != ResultBusy {
		c.CycleDuration.WithLabelValues(result).Observe(d.Seconds())
	}
}

// ObserveSimulator records how long the simulator ran.
func (c *Collector) ObserveSimulator(runner string, d time.Duration) {
	if c == nil {
		return
	}
	c.SimulatorDuration.WithLabelValues(runner).Observe(d.Seconds())
}

// SetRenderCounts updates the drawn artifact gauges.
func (c *Collector) SetRenderCounts(detections, attributions int) {
	if c == nil {
		return
	}
	c.Detections.Set(float64(detections))
	c.Attributions.Set(float64(attributions))
}

// SetSimulating flips the in-progress gauge.
func (c *Collector) SetSimulating(on bool) {
	if c == nil {
		return
	}
	if on {
		c.Simulating.Set(1)
	} else {
		c.Simulating.Set(0)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
