// Package observability bundles the server's Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the game server metrics and serves them over HTTP.
// A nil *Collector is valid and records nothing, so callers never need
// to branch on whether metrics are wired.
type Collector struct {
	gatherer prometheus.Gatherer

	RoomsActive  prometheus.Gauge
	RoundsTotal  *prometheus.CounterVec
	CatchesTotal prometheus.Counter
	HacksTotal   prometheus.Counter
	TickDuration prometheus.Histogram
}

// NewCollector registers the game metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rooms, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neurodive_rooms_active",
		Help: "Current number of open rooms.",
	}), "neurodive_rooms_active")
	if err != nil {
		return nil, err
	}

	rounds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neurodive_rounds_total",
		Help: "Finished rounds, labeled by how they ended.",
	}, []string{"result"})
	rounds, err = registerCounterVec(reg, rounds, "neurodive_rounds_total")
	if err != nil {
		return nil, err
	}

	catches, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neurodive_catches_total",
		Help: "Times the pursuer caught the explorer.",
	}), "neurodive_catches_total")
	if err != nil {
		return nil, err
	}

	hacks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neurodive_hacks_total",
		Help: "Corrupted nodes cleared by the pursuer.",
	}), "neurodive_hacks_total")
	if err != nil {
		return nil, err
	}

	tick, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "neurodive_tick_duration_seconds",
		Help:    "Wall time of one simulation tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "neurodive_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		RoomsActive:  rooms,
		RoundsTotal:  rounds,
		CatchesTotal: catches,
		HacksTotal:   hacks,
		TickDuration: tick,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RoomOpened bumps the active-rooms gauge.
func (c *Collector) RoomOpened() {
	if c != nil {
		c.RoomsActive.Inc()
	}
}

// RoomClosed drops the active-rooms gauge.
func (c *Collector) RoomClosed() {
	if c != nil {
		c.RoomsActive.Dec()
	}
}

// RoundFinished counts one finished round by result ("cleared" when the
// explorer reached the core, "caught" when the round ended in a catch).
func (c *Collector) RoundFinished(result string) {
	if c != nil {
		c.RoundsTotal.WithLabelValues(result).Inc()
	}
}

// CatchRecorded counts one catch.
func (c *Collector) CatchRecorded() {
	if c != nil {
		c.CatchesTotal.Inc()
	}
}

// HackRecorded counts one landed hack.
func (c *Collector) HackRecorded() {
	if c != nil {
		c.HacksTotal.Inc()
	}
}

// ObserveTick records the wall time of one simulation tick.
func (c *Collector) ObserveTick(d time.Duration) {
	if c != nil {
		c.TickDuration.Observe(d.Seconds())
	}
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

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
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

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
