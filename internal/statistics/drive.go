package statistics

import (
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/prometheus/client_golang/prometheus"
)

const driveSubsystem = "drive"

type DriveStats struct {
	Id             string
	Temperature    float64
	HasTemperature bool
	PowerState     drives.PowerState
	Excluded       bool
	QueryFailures  uint64
	SpinDowns      uint64
}

type DriveStatsSource interface {
	DriveStats() []DriveStats
}

type DriveCollector struct {
	source DriveStatsSource

	temperature   *prometheus.Desc
	powerState    *prometheus.Desc
	excluded      *prometheus.Desc
	queryFailures *prometheus.Desc
	spinDowns     *prometheus.Desc
}

func NewDriveCollector(source DriveStatsSource) *DriveCollector {
	return &DriveCollector{
		source: source,
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, driveSubsystem, "temperature_celsius"),
			"Last temperature read from the drive",
			[]string{"id"}, nil,
		),
		powerState: prometheus.NewDesc(prometheus.BuildFQName(namespace, driveSubsystem, "power_state"),
			"Last known power state of the drive (1 for the current state)",
			[]string{"id", "state"}, nil,
		),
		excluded: prometheus.NewDesc(prometheus.BuildFQName(namespace, driveSubsystem, "excluded"),
			"1 if the drive was excluded due to persistent errors",
			[]string{"id"}, nil,
		),
		queryFailures: prometheus.NewDesc(prometheus.BuildFQName(namespace, driveSubsystem, "query_failures_total"),
			"Number of failed temperature or power state queries",
			[]string{"id"}, nil,
		),
		spinDowns: prometheus.NewDesc(prometheus.BuildFQName(namespace, driveSubsystem, "spin_downs_total"),
			"Number of spin down commands issued",
			[]string{"id"}, nil,
		),
	}
}

func (collector *DriveCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.temperature
	ch <- collector.powerState
	ch <- collector.excluded
	ch <- collector.queryFailures
	ch <- collector.spinDowns
}

// Collect implements required collect function for all prometheus collectors
func (collector *DriveCollector) Collect(ch chan<- prometheus.Metric) {
	for _, stats := range collector.source.DriveStats() {
		if stats.HasTemperature {
			ch <- prometheus.MustNewConstMetric(collector.temperature, prometheus.GaugeValue, stats.Temperature, stats.Id)
		}
		for _, state := range []drives.PowerState{drives.PowerStateActive, drives.PowerStateStandby, drives.PowerStateUnknown} {
			ch <- prometheus.MustNewConstMetric(collector.powerState, prometheus.GaugeValue, boolToFloat(stats.PowerState == state), stats.Id, state.String())
		}
		ch <- prometheus.MustNewConstMetric(collector.excluded, prometheus.GaugeValue, boolToFloat(stats.Excluded), stats.Id)
		ch <- prometheus.MustNewConstMetric(collector.queryFailures, prometheus.CounterValue, float64(stats.QueryFailures), stats.Id)
		ch <- prometheus.MustNewConstMetric(collector.spinDowns, prometheus.CounterValue, float64(stats.SpinDowns), stats.Id)
	}
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
