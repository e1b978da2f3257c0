package fans

import (
	"fmt"

	"github.com/markusressel/hddfan/internal/configuration"
)

const (
	MaxPwmValue = configuration.MaxPwmValue
	MinPwmValue = configuration.MinPwmValue
)

type FeatureFlag int

const (
	FeatureRpmSensor   FeatureFlag = 0
	FeatureControlMode FeatureFlag = 1
)

type ControlMode int

const (
	// ControlModeDisabled completely disables control, resulting in a 100% voltage/PWM signal output
	ControlModeDisabled ControlMode = 0
	// ControlModePWM enables manual, fixed speed control via setting the pwm value
	ControlModePWM ControlMode = 1
	// ControlModeAutomatic enables automatic control by the integrated control of the mainboard
	ControlModeAutomatic ControlMode = 2
)

type Fan interface {
	GetId() string
	GetConfig() configuration.FanConfig

	// GetRpm returns the current RPM value of this fan
	GetRpm() (int, error)

	// GetPwm returns the current raw PWM value of this fan
	GetPwm() (int, error)
	SetPwm(pwm int) error

	// GetPwmEnabled returns the current "pwm_enable" value of this fan
	GetPwmEnabled() (ControlMode, error)
	SetPwmEnabled(value ControlMode) error

	Supports(feature FeatureFlag) bool
}

func NewFan(config configuration.FanConfig) (Fan, error) {
	pwmOutput := config.GetPwmOutput()
	if len(pwmOutput) <= 0 {
		return nil, fmt.Errorf("no pwm output known for fan: %s", config.ID)
	}

	return &HwMonFan{
		Config:    config,
		PwmOutput: pwmOutput,
		RpmInput:  config.GetRpmInput(),
	}, nil
}
