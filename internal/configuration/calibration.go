package configuration

import "time"

const (
	DefaultFastValue = MaxPwmValue
	DefaultSlowValue = MinPwmValue
)

type CalibrationConfig struct {
	// FastValue is the raw value the sweep starts from (fan at full speed),
	// SlowValue the raw value it never goes beyond. FastValue < SlowValue means
	// the hardware scale is inverted.
	FastValue int `json:"fastValue"`
	SlowValue int `json:"slowValue"`
	Step      int `json:"step"`
	// SettleDelay is the time to wait after writing a value before sampling RPM
	SettleDelay    time.Duration `json:"settleDelay"`
	SampleInterval time.Duration `json:"sampleInterval"`
	// StableSamples is the number of consecutive agreeing RPM samples needed to confirm a state
	StableSamples int `json:"stableSamples"`
	// RpmNoiseFloor is the highest RPM reading still considered "stopped"
	RpmNoiseFloor int           `json:"rpmNoiseFloor"`
	Timeout       time.Duration `json:"timeout"`
}
