package configuration

import (
	"errors"
	"fmt"

	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

func Validate() error {
	return validateConfig(&CurrentConfig)
}

func validateConfig(config *Configuration) error {
	if config.Interval <= 0 {
		return errors.New("interval must be > 0")
	}
	if config.QueryWorkers < 1 {
		return errors.New("queryWorkers must be >= 1")
	}

	if err := validateTemperature(config.Temperature); err != nil {
		return err
	}
	if err := validateDrives(config); err != nil {
		return err
	}
	if err := validateCpu(config.Cpu); err != nil {
		return err
	}
	if err := validateFans(config); err != nil {
		return err
	}
	return validateCalibration(config.Calibration)
}

func validateTemperature(config TemperatureConfig) error {
	if config.Low >= config.High {
		return fmt.Errorf("temperature: low (%.1f) must be lower than high (%.1f)", config.Low, config.High)
	}
	if config.Hysteresis < 0 {
		return fmt.Errorf("temperature: hysteresis must be >= 0, was %.1f", config.Hysteresis)
	}
	if config.Hysteresis >= config.High-config.Low {
		ui.Warning("temperature: hysteresis (%.1f) spans the whole low..high range", config.Hysteresis)
	}
	return nil
}

func validateDrives(config *Configuration) error {
	if len(config.Drives) <= 0 {
		return errors.New("no drives configured")
	}

	var ids []string
	for _, driveConfig := range config.Drives {
		if len(driveConfig.ID) <= 0 {
			return errors.New("drive id must not be empty")
		}
		if util.ContainsString(ids, driveConfig.ID) {
			return fmt.Errorf("duplicate drive id detected: %s", driveConfig.ID)
		}
		ids = append(ids, driveConfig.ID)

		if len(driveConfig.Device) <= 0 {
			return fmt.Errorf("drive %s: device is missing", driveConfig.ID)
		}
		if driveConfig.SpinDownTimeout < 0 {
			return fmt.Errorf("drive %s: spinDownTimeout must be >= 0", driveConfig.ID)
		}
		if driveConfig.SpinDownTimeout > 0 && driveConfig.SpinDownTimeout < config.Interval {
			ui.Warning("drive %s: spinDownTimeout (%s) is shorter than the control interval (%s)",
				driveConfig.ID, driveConfig.SpinDownTimeout, config.Interval)
		}
	}

	return nil
}

func validateCpu(config *CpuSensorConfig) error {
	if config == nil {
		return nil
	}

	subConfigs := 0
	if len(config.Path) > 0 {
		subConfigs++
	}
	if config.HwMon != nil {
		subConfigs++
	}
	if subConfigs > 1 {
		return errors.New("cpu: only one of path | hwMon can be used")
	}
	if subConfigs <= 0 {
		return errors.New("cpu: sub-configuration is missing, use one of: path | hwMon")
	}
	if config.HwMon != nil && config.HwMon.Index <= 0 {
		return errors.New("cpu: invalid hwMon index, must be >= 1")
	}
	return nil
}

func validateFans(config *Configuration) error {
	if len(config.Fans) <= 0 {
		return errors.New("no fans configured")
	}

	var ids []string
	for _, fanConfig := range config.Fans {
		if len(fanConfig.ID) <= 0 {
			return errors.New("fan id must not be empty")
		}
		if util.ContainsString(ids, fanConfig.ID) {
			return fmt.Errorf("duplicate fan id detected: %s", fanConfig.ID)
		}
		ids = append(ids, fanConfig.ID)

		if err := validateFan(fanConfig); err != nil {
			return err
		}
	}

	return nil
}

func validateFan(config FanConfig) error {
	subConfigs := 0
	if len(config.Pwm) > 0 {
		subConfigs++
	}
	if config.HwMon != nil {
		subConfigs++
	}
	if subConfigs > 1 {
		return fmt.Errorf("fan %s: only one of pwm | hwMon can be used", config.ID)
	}
	if subConfigs <= 0 {
		return fmt.Errorf("fan %s: sub-configuration for fan is missing, use one of: pwm | hwMon", config.ID)
	}
	if config.HwMon != nil && config.HwMon.Index <= 0 {
		return fmt.Errorf("fan %s: invalid hwMon index, must be >= 1", config.ID)
	}

	for name, value := range map[string]*int{
		"startValue":  config.StartValue,
		"stopValue":   config.StopValue,
		"spinUpValue": config.SpinUpValue,
	} {
		if value != nil && (*value < MinPwmValue || *value > MaxPwmValue) {
			return fmt.Errorf("fan %s: %s must be in range [%d..%d], was %d", config.ID, name, MinPwmValue, MaxPwmValue, *value)
		}
	}

	start, stop := config.GetStartValue(), config.GetStopValue()
	if start == stop {
		return fmt.Errorf("fan %s: startValue and stopValue must differ", config.ID)
	}
	if config.SpinUpValue != nil {
		spinUp := *config.SpinUpValue
		if spinUp < min(start, stop) || spinUp > max(start, stop) {
			return fmt.Errorf("fan %s: spinUpValue %d is outside of [stopValue..startValue]", config.ID, spinUp)
		}
	}

	minDuty, maxDuty := config.MinDutyPct, config.GetMaxDutyPct()
	if minDuty < 0 || maxDuty > 100 || minDuty > maxDuty {
		return fmt.Errorf("fan %s: duty cycle bounds must satisfy 0 <= minDutyPct (%.1f) <= maxDutyPct (%.1f) <= 100", config.ID, minDuty, maxDuty)
	}

	return nil
}

func validateCalibration(config CalibrationConfig) error {
	if config.Step <= 0 {
		return errors.New("calibration: step must be > 0")
	}
	if config.StableSamples < 1 {
		return errors.New("calibration: stableSamples must be >= 1")
	}
	if config.FastValue == config.SlowValue {
		return errors.New("calibration: fastValue and slowValue must differ")
	}
	for _, value := range []int{config.FastValue, config.SlowValue} {
		if value < MinPwmValue || value > MaxPwmValue {
			return fmt.Errorf("calibration: pwm values must be in range [%d..%d], was %d", MinPwmValue, MaxPwmValue, value)
		}
	}
	return nil
}
