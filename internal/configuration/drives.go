package configuration

import "time"

// ProbeMethod selects how the temperature of a drive is read
type ProbeMethod string

const (
	// ProbeAuto tries all methods in the order below and keeps the first supported one
	ProbeAuto      ProbeMethod = "auto"
	ProbeDrivetemp ProbeMethod = "drivetemp"
	ProbeSmart     ProbeMethod = "smart"
	ProbeSmartctl  ProbeMethod = "smartctl"
	ProbeHddtemp   ProbeMethod = "hddtemp"
)

var ProbeMethods = []ProbeMethod{ProbeDrivetemp, ProbeSmart, ProbeSmartctl, ProbeHddtemp}

type DriveConfig struct {
	ID string `json:"id"`
	// Device is a block device path (/dev/sda), name (sda) or id (ata-...)
	Device string      `json:"device"`
	Probe  ProbeMethod `json:"probe"`
	// SpinDownTimeout enables spin-down monitoring when > 0
	SpinDownTimeout time.Duration `json:"spinDownTimeout"`
	// StandbySafeProbe indicates that the drive can report its temperature
	// while in standby without spinning up
	StandbySafeProbe bool `json:"standbySafeProbe"`
}

func (c DriveConfig) GetProbe() ProbeMethod {
	if len(c.Probe) <= 0 {
		return ProbeAuto
	}
	return c.Probe
}

func (c DriveConfig) SpinDownEnabled() bool {
	return c.SpinDownTimeout > 0
}
