package statistics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const fanSubsystem = "fan"

type FanStats struct {
	Id            string
	TargetPct     float64
	Pwm           int
	HasPwm        bool
	Rpm           int
	HasRpm        bool
	Excluded      bool
	WriteFailures uint64
}

type FanStatsSource interface {
	FanStats() []FanStats
}

type FanCollector struct {
	source FanStatsSource

	target        *prometheus.Desc
	pwm           *prometheus.Desc
	rpm           *prometheus.Desc
	excluded      *prometheus.Desc
	writeFailures *prometheus.Desc
}

func NewFanCollector(source FanStatsSource) *FanCollector {
	return &FanCollector{
		source: source,
		target: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "target_percent"),
			"Current target duty cycle of the fan",
			[]string{"id"}, nil,
		),
		pwm: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "pwm"),
			"Last raw PWM value written to the fan",
			[]string{"id"}, nil,
		),
		rpm: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "rpm"),
			"Current RPM value of the fan",
			[]string{"id"}, nil,
		),
		excluded: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "excluded"),
			"1 if the fan was excluded due to persistent errors",
			[]string{"id"}, nil,
		),
		writeFailures: prometheus.NewDesc(prometheus.BuildFQName(namespace, fanSubsystem, "write_failures_total"),
			"Number of failed PWM writes",
			[]string{"id"}, nil,
		),
	}
}

func (collector *FanCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.target
	ch <- collector.pwm
	ch <- collector.rpm
	ch <- collector.excluded
	ch <- collector.writeFailures
}

// Collect implements required collect function for all prometheus collectors
func (collector *FanCollector) Collect(ch chan<- prometheus.Metric) {
	for _, stats := range collector.source.FanStats() {
		ch <- prometheus.MustNewConstMetric(collector.target, prometheus.GaugeValue, stats.TargetPct, stats.Id)
		if stats.HasPwm {
			ch <- prometheus.MustNewConstMetric(collector.pwm, prometheus.GaugeValue, float64(stats.Pwm), stats.Id)
		}
		if stats.HasRpm {
			ch <- prometheus.MustNewConstMetric(collector.rpm, prometheus.GaugeValue, float64(stats.Rpm), stats.Id)
		}
		ch <- prometheus.MustNewConstMetric(collector.excluded, prometheus.GaugeValue, boolToFloat(stats.Excluded), stats.Id)
		ch <- prometheus.MustNewConstMetric(collector.writeFailures, prometheus.CounterValue, float64(stats.WriteFailures), stats.Id)
	}
}
