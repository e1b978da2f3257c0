package configuration

const (
	MinPwmValue = 0
	MaxPwmValue = 255

	DefaultStartValue = MaxPwmValue
	DefaultStopValue  = MinPwmValue
	DefaultMaxDutyPct = 100.0
)

type FanConfig struct {
	ID string `json:"id"`
	// Pwm is the path of the pwm control file, Rpm the path of the matching fan*_input file
	Pwm   string          `json:"pwm"`
	Rpm   string          `json:"rpm"`
	HwMon *HwMonFanConfig `json:"hwMon"`

	// StartValue is the raw value driving the fan at full operating speed
	StartValue *int `json:"startValue"`
	// StopValue is the raw value at which the fan is stopped
	StopValue *int `json:"stopValue"`
	// SpinUpValue is the raw value needed to reliably start the fan from a stand still
	SpinUpValue *int `json:"spinUpValue"`

	MinDutyPct float64  `json:"minDutyPct"`
	MaxDutyPct *float64 `json:"maxDutyPct"`
}

type HwMonFanConfig struct {
	Platform string `json:"platform"`
	Index    int    `json:"index"`
	// PwmOutput and RpmInput are resolved at startup from Platform and Index
	PwmOutput string
	RpmInput  string
}

func (c FanConfig) GetStartValue() int {
	if c.StartValue == nil {
		return DefaultStartValue
	}
	return *c.StartValue
}

func (c FanConfig) GetStopValue() int {
	if c.StopValue == nil {
		return DefaultStopValue
	}
	return *c.StopValue
}

func (c FanConfig) GetMaxDutyPct() float64 {
	if c.MaxDutyPct == nil {
		return DefaultMaxDutyPct
	}
	return *c.MaxDutyPct
}

func (c FanConfig) GetPwmOutput() string {
	if c.HwMon != nil && len(c.HwMon.PwmOutput) > 0 {
		return c.HwMon.PwmOutput
	}
	return c.Pwm
}

func (c FanConfig) GetRpmInput() string {
	if c.HwMon != nil && len(c.HwMon.RpmInput) > 0 {
		return c.HwMon.RpmInput
	}
	return c.Rpm
}
