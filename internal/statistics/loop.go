package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const loopSubsystem = "loop"

type LoopStats struct {
	Cycles            uint64
	HeldCycles        uint64
	LastCycleDuration time.Duration
	Temperature       float64
	HasTemperature    bool
}

type LoopStatsSource interface {
	LoopStats() LoopStats
}

type LoopCollector struct {
	source LoopStatsSource

	cycles        *prometheus.Desc
	heldCycles    *prometheus.Desc
	cycleDuration *prometheus.Desc
	temperature   *prometheus.Desc
}

func NewLoopCollector(source LoopStatsSource) *LoopCollector {
	return &LoopCollector{
		source: source,
		cycles: prometheus.NewDesc(prometheus.BuildFQName(namespace, loopSubsystem, "cycles_total"),
			"Number of completed control cycles",
			nil, nil,
		),
		heldCycles: prometheus.NewDesc(prometheus.BuildFQName(namespace, loopSubsystem, "held_cycles_total"),
			"Number of control cycles without any temperature reading, where the previous target was held",
			nil, nil,
		),
		cycleDuration: prometheus.NewDesc(prometheus.BuildFQName(namespace, loopSubsystem, "last_cycle_duration_seconds"),
			"Duration of the last control cycle",
			nil, nil,
		),
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, loopSubsystem, "temperature_celsius"),
			"Aggregated temperature of the last control cycle",
			nil, nil,
		),
	}
}

func (collector *LoopCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.cycles
	ch <- collector.heldCycles
	ch <- collector.cycleDuration
	ch <- collector.temperature
}

// Collect implements required collect function for all prometheus collectors
func (collector *LoopCollector) Collect(ch chan<- prometheus.Metric) {
	stats := collector.source.LoopStats()
	ch <- prometheus.MustNewConstMetric(collector.cycles, prometheus.CounterValue, float64(stats.Cycles))
	ch <- prometheus.MustNewConstMetric(collector.heldCycles, prometheus.CounterValue, float64(stats.HeldCycles))
	ch <- prometheus.MustNewConstMetric(collector.cycleDuration, prometheus.GaugeValue, stats.LastCycleDuration.Seconds())
	if stats.HasTemperature {
		ch <- prometheus.MustNewConstMetric(collector.temperature, prometheus.GaugeValue, stats.Temperature)
	}
}
