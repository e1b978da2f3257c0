package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/controller"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

var (
	ErrFanNotSpinning  = errors.New("fan is not spinning at full speed")
	ErrFanNeverStopped = errors.New("fan never stopped")
	ErrFanNeverStarted = errors.New("fan never started")
)

type Phase int

const (
	PhaseRampDown Phase = iota
	PhaseRampUp
)

func (p Phase) String() string {
	if p == PhaseRampUp {
		return "ramp up"
	}
	return "ramp down"
}

type Sample struct {
	Phase Phase `json:"phase"`
	Pwm   int   `json:"pwm"`
	// MinRpm and MaxRpm over all samples taken at this pwm value
	MinRpm int `json:"minRpm"`
	MaxRpm int `json:"maxRpm"`
}

type Result struct {
	// StartValue is the lowest raw value at which the fan reliably starts from a stand still
	StartValue int `json:"startValue"`
	// StopValue is the first raw value at which the fan was confirmed stopped
	StopValue int  `json:"stopValue"`
	Inverted  bool `json:"inverted"`

	Samples []Sample `json:"samples"`
}

type SleepFunc func(ctx context.Context, duration time.Duration) error

type Calibrator struct {
	fan    fans.Fan
	config configuration.CalibrationConfig
	sleep  SleepFunc

	// OnSample is called after each completed step, if set
	OnSample func(sample Sample)
}

func NewCalibrator(fan fans.Fan, config configuration.CalibrationConfig) *Calibrator {
	return &Calibrator{
		fan:    fan,
		config: config,
		sleep:  sleepContext,
	}
}

// WithSleep replaces the function used to wait between writing a value and sampling
func (c *Calibrator) WithSleep(sleep SleepFunc) *Calibrator {
	c.sleep = sleep
	return c
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Calibrate sweeps the raw pwm value of the fan from fast to slow until the fan stops, and from
// there back up until it starts again. The fan is handed back to its original control mode
// (or full speed) afterwards.
func (c *Calibrator) Calibrate(ctx context.Context) (Result, error) {
	fan := c.fan
	if !fan.Supports(fans.FeatureRpmSensor) {
		return Result{}, fmt.Errorf("fan %s has no rpm sensor, cannot calibrate", fan.GetId())
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	fast, slow := c.config.FastValue, c.config.SlowValue
	fanController := controller.NewFanController(fan, controller.Config{
		StartValue: fast,
		StopValue:  slow,
		MaxDutyPct: 100,
	})
	fanController.TakeControl()
	defer func() {
		if err := fanController.RestoreSafeState(); err != nil {
			ui.Warning("Unable to restore fan %s, make sure it is running!", fan.GetId())
		}
	}()

	result := Result{Inverted: fast < slow}

	ui.Info("Fan %s: spinning up at %d...", fan.GetId(), fast)
	minRpm, _, err := c.measure(ctx, fast)
	if err != nil {
		return result, c.wrapErr(err)
	}
	if minRpm <= c.config.RpmNoiseFloor {
		return result, fmt.Errorf("fan %s at %d: %w", fan.GetId(), fast, ErrFanNotSpinning)
	}

	stopValue, err := c.sweep(ctx, &result, PhaseRampDown, fast, slow)
	if err != nil {
		return result, c.wrapErr(err)
	}
	result.StopValue = stopValue
	ui.Info("Fan %s: stopped at %d", fan.GetId(), stopValue)

	startValue, err := c.sweep(ctx, &result, PhaseRampUp, stopValue, fast)
	if err != nil {
		return result, c.wrapErr(err)
	}
	result.StartValue = startValue
	ui.Info("Fan %s: started at %d", fan.GetId(), startValue)

	return result, nil
}

// sweep steps from (exclusive) to target (inclusive) and returns the first value at which the
// phase condition is met: all samples at or below the noise floor when ramping down, all samples
// above it when ramping up.
func (c *Calibrator) sweep(ctx context.Context, result *Result, phase Phase, from int, to int) (int, error) {
	for _, pwm := range stepValues(from, to, c.config.Step) {
		minRpm, maxRpm, err := c.measure(ctx, pwm)
		if err != nil {
			return 0, err
		}

		sample := Sample{Phase: phase, Pwm: pwm, MinRpm: minRpm, MaxRpm: maxRpm}
		result.Samples = append(result.Samples, sample)
		ui.Debug("Fan %s (%s): pwm %d, rpm %d..%d", c.fan.GetId(), phase, pwm, minRpm, maxRpm)
		if c.OnSample != nil {
			c.OnSample(sample)
		}

		switch phase {
		case PhaseRampDown:
			if maxRpm <= c.config.RpmNoiseFloor {
				return pwm, nil
			}
		case PhaseRampUp:
			if minRpm > c.config.RpmNoiseFloor {
				return pwm, nil
			}
		}
	}

	if phase == PhaseRampDown {
		return 0, fmt.Errorf("fan %s still spinning at %d: %w", c.fan.GetId(), to, ErrFanNeverStopped)
	}
	return 0, fmt.Errorf("fan %s still stopped at %d: %w", c.fan.GetId(), to, ErrFanNeverStarted)
}

// measure writes pwm, waits for the fan to settle and returns the lowest and highest
// of stableSamples consecutive rpm readings.
func (c *Calibrator) measure(ctx context.Context, pwm int) (minRpm int, maxRpm int, err error) {
	if err = c.fan.SetPwm(pwm); err != nil {
		return 0, 0, fmt.Errorf("%w: fan %s: %w", controller.ErrWriteFailed, c.fan.GetId(), err)
	}
	if err = c.sleep(ctx, c.config.SettleDelay); err != nil {
		return 0, 0, err
	}

	samples := max(c.config.StableSamples, 1)
	window := util.CreateRollingWindow(samples)
	for i := 0; i < samples; i++ {
		if i > 0 {
			if err = c.sleep(ctx, c.config.SampleInterval); err != nil {
				return 0, 0, err
			}
		}
		rpm, err := c.fan.GetRpm()
		if err != nil {
			return 0, 0, fmt.Errorf("cannot read rpm of fan %s: %w", c.fan.GetId(), err)
		}
		window.Append(float64(rpm))
	}

	return int(util.GetWindowMin(window)), int(util.GetWindowMax(window)), nil
}

func (c *Calibrator) wrapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("calibration of fan %s timed out after %s: %w", c.fan.GetId(), c.config.Timeout, err)
	}
	return err
}

// stepValues returns the values from "from" (exclusive) to "to" (inclusive) in steps of step,
// the last step being shortened to end exactly at "to".
func stepValues(from int, to int, step int) []int {
	if step <= 0 || from == to {
		return nil
	}
	direction := 1
	if to < from {
		direction = -1
	}

	var result []int
	for value := from + direction*step; ; value += direction * step {
		if (direction > 0 && value >= to) || (direction < 0 && value <= to) {
			result = append(result, to)
			return result
		}
		result = append(result, value)
	}
}
