package fans

import (
	"fmt"
	"os"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

// HwMonFan controls a fan through sysfs pwmN, pwmN_enable and fanN_input files
type HwMonFan struct {
	Config    configuration.FanConfig `json:"config"`
	PwmOutput string                  `json:"pwmoutput"`
	RpmInput  string                  `json:"rpminput"`
}

func (fan HwMonFan) GetId() string {
	return fan.Config.ID
}

func (fan HwMonFan) GetConfig() configuration.FanConfig {
	return fan.Config
}

func (fan HwMonFan) GetRpm() (int, error) {
	if len(fan.RpmInput) <= 0 {
		return -1, fmt.Errorf("fan %s has no rpm input", fan.GetId())
	}
	return util.ReadIntFromFile(fan.RpmInput)
}

func (fan HwMonFan) GetPwm() (int, error) {
	return util.ReadIntFromFile(fan.PwmOutput)
}

func (fan *HwMonFan) SetPwm(pwm int) error {
	ui.Debug("Setting %s (%s) to %d ...", fan.GetId(), fan.PwmOutput, pwm)
	return util.WriteIntToFile(pwm, fan.PwmOutput)
}

func (fan HwMonFan) pwmEnablePath() string {
	return fan.PwmOutput + "_enable"
}

func (fan HwMonFan) GetPwmEnabled() (ControlMode, error) {
	value, err := util.ReadIntFromFile(fan.pwmEnablePath())
	return ControlMode(value), err
}

// SetPwmEnabled writes the given value to pwmN_enable
// Possible values (unsure if these are true for all scenarios):
// 0 - no control (results in max speed)
// 1 - manual pwm control
// 2 - motherboard pwm control
func (fan *HwMonFan) SetPwmEnabled(value ControlMode) error {
	path := fan.pwmEnablePath()
	if err := util.WriteIntToFile(int(value), path); err != nil {
		return err
	}
	currentValue, err := util.ReadIntFromFile(path)
	if err != nil {
		return err
	}
	if currentValue != int(value) {
		return fmt.Errorf("PWM mode stuck to %d", currentValue)
	}
	return nil
}

func (fan HwMonFan) Supports(feature FeatureFlag) bool {
	switch feature {
	case FeatureRpmSensor:
		return len(fan.RpmInput) > 0
	case FeatureControlMode:
		_, err := os.Stat(fan.pwmEnablePath())
		return err == nil
	}
	return false
}
