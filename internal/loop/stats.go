package loop

import (
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/statistics"
)

func (l *ControlLoop) DriveStats() []statistics.DriveStats {
	result := make([]statistics.DriveStats, 0, len(l.drives))
	for _, entry := range l.drives {
		result = append(result, statistics.DriveStats{
			Id:             entry.drive.GetId(),
			Temperature:    entry.temperature,
			HasTemperature: entry.hasTemperature,
			PowerState:     entry.tracker.State(),
			Excluded:       entry.failures.IsPersistent(),
			QueryFailures:  entry.queryFailures,
			SpinDowns:      entry.spinDowns,
		})
	}
	return result
}

func (l *ControlLoop) FanStats() []statistics.FanStats {
	result := make([]statistics.FanStats, 0, len(l.fans))
	for _, entry := range l.fans {
		c := entry.controller
		stats := statistics.FanStats{
			Id:            c.GetId(),
			TargetPct:     c.LastPct(),
			Excluded:      entry.failures.IsPersistent(),
			WriteFailures: entry.writeFailures,
		}
		stats.Pwm, stats.HasPwm = c.LastWritten()
		if c.Fan().Supports(fans.FeatureRpmSensor) {
			if rpm, err := c.Fan().GetRpm(); err == nil {
				stats.Rpm = rpm
				stats.HasRpm = true
			}
		}
		result = append(result, stats)
	}
	return result
}

func (l *ControlLoop) LoopStats() statistics.LoopStats {
	return statistics.LoopStats{
		Cycles:            l.cycles,
		HeldCycles:        l.heldCycles,
		LastCycleDuration: l.lastDuration,
		Temperature:       l.temperature,
		HasTemperature:    l.hasTemperature,
	}
}
