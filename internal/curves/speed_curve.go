package curves

import (
	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/util"
)

type Direction int

const (
	DirectionNone Direction = iota
	DirectionRising
	DirectionFalling
)

func (d Direction) String() string {
	switch d {
	case DirectionRising:
		return "rising"
	case DirectionFalling:
		return "falling"
	default:
		return "none"
	}
}

// Thresholds map a temperature to a duty cycle percentage.
// Temperatures are in °C, duty cycles in percent.
type Thresholds struct {
	Low  float64
	High float64
	// Hysteresis shifts both thresholds down by this margin while the temperature is falling
	Hysteresis float64

	MinDutyPct float64
	MaxDutyPct float64
}

func NewThresholds(config configuration.TemperatureConfig, minDutyPct float64, maxDutyPct float64) Thresholds {
	return Thresholds{
		Low:        config.Low,
		High:       config.High,
		Hysteresis: config.Hysteresis,
		MinDutyPct: minDutyPct,
		MaxDutyPct: maxDutyPct,
	}
}

// State is the result of the last evaluation, it has to be passed into the next one
type State struct {
	Pct       float64
	Direction Direction
	// Initialized is false until the first evaluation
	Initialized bool
}

// Interpolate maps temp linearly from [Low, High] onto [MinDutyPct, 100],
// clamped to [MinDutyPct, MaxDutyPct].
func Interpolate(temp float64, thresholds Thresholds) float64 {
	floor := thresholds.MinDutyPct

	var pct float64
	switch {
	case temp <= thresholds.Low:
		pct = floor
	case temp >= thresholds.High:
		pct = 100
	default:
		ratio := util.Ratio(temp, thresholds.Low, thresholds.High)
		pct = floor + ratio*(100-floor)
	}
	return util.Coerce(pct, thresholds.MinDutyPct, thresholds.MaxDutyPct)
}

// Compute returns the target duty cycle for the given temperature.
//
// A rising (or unchanged) target is followed immediately. A falling target is computed with
// both thresholds shifted down by the hysteresis margin, and never exceeds the previous target.
// So after reaching full speed at High, the fan only slows down once the temperature drops below
// High - Hysteresis. At or below Low the target is always the floor, at or above High always full speed.
func Compute(temp float64, previous State, thresholds Thresholds) State {
	rising := Interpolate(temp, thresholds)
	if !previous.Initialized {
		return State{Pct: rising, Direction: DirectionNone, Initialized: true}
	}
	if rising >= previous.Pct || temp <= thresholds.Low || temp >= thresholds.High {
		direction := previous.Direction
		if rising > previous.Pct {
			direction = DirectionRising
		} else if rising < previous.Pct {
			direction = DirectionFalling
		}
		return State{Pct: rising, Direction: direction, Initialized: true}
	}

	falling := min(previous.Pct, Interpolate(temp+thresholds.Hysteresis, thresholds))
	direction := previous.Direction
	if falling < previous.Pct {
		direction = DirectionFalling
	}
	return State{Pct: falling, Direction: direction, Initialized: true}
}
