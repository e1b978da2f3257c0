package controller

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/curves"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

// ErrWriteFailed is returned when a raw PWM value could not be written to the fan
var ErrWriteFailed = errors.New("pwm write failed")

type Config struct {
	// StartValue is the raw value at 100%, StopValue the raw value at 0%
	StartValue int
	StopValue  int
	// SpinUpValue, if set, is written for StartupBoost after the fan left the stopped state
	SpinUpValue  *int
	StartupBoost time.Duration

	MinDutyPct float64
	MaxDutyPct float64
}

func NewConfig(fanConfig configuration.FanConfig, startupBoost time.Duration) Config {
	return Config{
		StartValue:   fanConfig.GetStartValue(),
		StopValue:    fanConfig.GetStopValue(),
		SpinUpValue:  fanConfig.SpinUpValue,
		StartupBoost: startupBoost,
		MinDutyPct:   fanConfig.MinDutyPct,
		MaxDutyPct:   fanConfig.GetMaxDutyPct(),
	}
}

// FanController owns a single fan and translates duty cycle percentages into raw PWM writes
type FanController struct {
	fan    fans.Fan
	config Config
	now    func() time.Time

	curveState  curves.State
	lastWritten *int
	lastPct     float64
	boostUntil  time.Time

	originalPwmEnabled *fans.ControlMode
}

func NewFanController(fan fans.Fan, config Config) *FanController {
	return &FanController{
		fan:    fan,
		config: config,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for the startup boost
func (f *FanController) WithClock(now func() time.Time) *FanController {
	f.now = now
	return f
}

func (f *FanController) GetId() string {
	return f.fan.GetId()
}

func (f *FanController) Fan() fans.Fan {
	return f.fan
}

func (f *FanController) Config() Config {
	return f.config
}

// LastWritten returns the last raw value written by this controller
func (f *FanController) LastWritten() (int, bool) {
	if f.lastWritten == nil {
		return 0, false
	}
	return *f.lastWritten, true
}

// LastPct returns the duty cycle of the last successful Apply
func (f *FanController) LastPct() float64 {
	return f.lastPct
}

func (f *FanController) CurveState() curves.State {
	return f.curveState
}

// ComputeTarget evaluates the speed curve for the given temperature within the duty cycle bounds
// of this fan and remembers the result for the next evaluation.
func (f *FanController) ComputeTarget(temp float64, temperature configuration.TemperatureConfig) float64 {
	thresholds := curves.NewThresholds(temperature, f.config.MinDutyPct, f.config.MaxDutyPct)
	f.curveState = curves.Compute(temp, f.curveState, thresholds)
	return f.curveState.Pct
}

// PercentToPwm maps a duty cycle in [0, 100] linearly onto [StopValue, StartValue].
// Works for both increasing and decreasing raw scales.
func (f *FanController) PercentToPwm(pct float64) int {
	pct = util.Coerce(pct, 0, 100)
	start, stop := f.config.StartValue, f.config.StopValue
	if pct == 0 && f.config.MinDutyPct == 0 {
		return stop
	}
	raw := stop + util.RoundToInt(float64(start-stop)*pct/100)
	return util.CoerceUnordered(raw, stop, start)
}

// PwmToPercent is the inverse of PercentToPwm
func (f *FanController) PwmToPercent(raw int) float64 {
	start, stop := f.config.StartValue, f.config.StopValue
	if start == stop {
		return 0
	}
	pct := float64(raw-stop) / float64(start-stop) * 100
	return util.Coerce(pct, 0, 100)
}

// Apply writes the raw value for the given duty cycle, clamped to the duty cycle bounds of
// this fan. Writing is skipped if the raw value did not change.
func (f *FanController) Apply(pct float64) error {
	if math.IsNaN(pct) {
		return fmt.Errorf("fan %s: invalid target percentage", f.GetId())
	}
	target := util.Coerce(pct, f.config.MinDutyPct, f.config.MaxDutyPct)
	raw := f.applyStartupBoost(f.PercentToPwm(target))

	if f.lastWritten != nil && *f.lastWritten == raw {
		f.lastPct = target
		return nil
	}

	ui.Debug("Fan %s: %.1f%% -> raw %d", f.GetId(), target, raw)
	if err := f.fan.SetPwm(raw); err != nil {
		return fmt.Errorf("%w: fan %s: %w", ErrWriteFailed, f.GetId(), err)
	}
	f.lastWritten = &raw
	f.lastPct = target
	return nil
}

// isStopped is false before the first write, the fan may already be spinning
func (f *FanController) isStopped() bool {
	return f.lastWritten != nil && *f.lastWritten == f.config.StopValue
}

// applyStartupBoost raises raw to at least the spin up value for a while after
// the fan left the stopped state.
func (f *FanController) applyStartupBoost(raw int) int {
	stop := f.config.StopValue
	if raw == stop {
		f.boostUntil = time.Time{}
		return raw
	}
	if f.config.SpinUpValue == nil || f.config.StartupBoost <= 0 {
		return raw
	}

	now := f.now()
	if f.isStopped() {
		f.boostUntil = now.Add(f.config.StartupBoost)
		ui.Debug("Fan %s: starting up, boosting to at least %d until %s", f.GetId(), *f.config.SpinUpValue, f.boostUntil.Format(time.TimeOnly))
	}
	if !now.Before(f.boostUntil) {
		return raw
	}

	spinUp := *f.config.SpinUpValue
	if f.config.StartValue > stop {
		return max(raw, spinUp)
	}
	return min(raw, spinUp)
}

// TakeControl remembers the current control mode of the fan and switches it to manual pwm control
func (f *FanController) TakeControl() {
	if !f.fan.Supports(fans.FeatureControlMode) {
		return
	}

	pwmEnabled, err := f.fan.GetPwmEnabled()
	if err != nil {
		ui.Warning("Cannot read pwm_enable value of %s: %v", f.GetId(), err)
	} else {
		f.originalPwmEnabled = &pwmEnabled
	}

	err = f.fan.SetPwmEnabled(fans.ControlModePWM)
	if err != nil {
		err = f.fan.SetPwmEnabled(fans.ControlModeDisabled)
	}
	if err != nil {
		ui.Warning("Could not enable fan control on %s, trying to continue anyway...", f.GetId())
	}
}

// RestoreSafeState hands the fan back to its original control mode, or drives it at full
// speed if that is not possible.
func (f *FanController) RestoreSafeState() error {
	ui.Info("Trying to restore fan settings for %s...", f.GetId())

	if f.originalPwmEnabled != nil && *f.originalPwmEnabled != fans.ControlModePWM {
		err := f.fan.SetPwmEnabled(*f.originalPwmEnabled)
		if err == nil {
			return nil
		}
		ui.Warning("Could not restore pwm_enable of %s: %v", f.GetId(), err)
	}

	fullSpeed := f.config.StartValue
	if err := f.fan.SetPwm(fullSpeed); err != nil {
		return fmt.Errorf("%w: fan %s: %w", ErrWriteFailed, f.GetId(), err)
	}
	f.lastWritten = &fullSpeed
	f.lastPct = 100
	return nil
}
