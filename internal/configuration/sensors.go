package configuration

// CpuSensorConfig configures the optional CPU temperature source.
// Exactly one of Path or HwMon must be set.
type CpuSensorConfig struct {
	// Path of a sysfs temp*_input file (millidegrees)
	Path  string             `json:"path"`
	HwMon *HwMonSensorConfig `json:"hwMon"`
}

type HwMonSensorConfig struct {
	Platform string `json:"platform"`
	Index    int    `json:"index"`
	// TempInput is resolved at startup from Platform and Index
	TempInput string
}
