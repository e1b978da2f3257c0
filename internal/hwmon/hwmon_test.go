package hwmon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/md14454/gosensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIdentifierIsa(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Prefix: "nct6798",
		Addr:   0x290,
		Bus: gosensors.Bus{
			Type: BusTypeIsa,
		},
		Path: "/sys/class/hwmon/hwmon3",
	}

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, "nct6798-isa-0290", result)
}

func TestComputeIdentifierPci(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Prefix: "nvme",
		Addr:   0x5,
		Bus: gosensors.Bus{
			Type: BusTypePci,
			Nr:   1,
		},
		Path: "/sys/class/hwmon/hwmon4",
	}

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, "nvme-pci-0105", result)
}

func TestComputeIdentifierFallsBackToPath(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Path: filepath.Join(t.TempDir(), "hwmon9"),
	}

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, "hwmon9", result)
}

func TestFindPwmOutput(t *testing.T) {
	// GIVEN
	chipPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(chipPath, "pwm2"), []byte("128"), 0o644))

	// THEN
	assert.Equal(t, filepath.Join(chipPath, "pwm2"), findPwmOutput(chipPath, "fan2_input"))
	assert.Equal(t, "", findPwmOutput(chipPath, "fan3_input"))
	assert.Equal(t, "", findPwmOutput(chipPath, "temp1_input"))
}

func createChips() []*Chip {
	return []*Chip{
		{
			Name: "coretemp-isa-0000",
			Path: "/sys/class/hwmon/hwmon1",
			Temps: []TempChannel{
				{Index: 1, Input: "/sys/class/hwmon/hwmon1/temp1_input"},
				{Index: 2, Input: "/sys/class/hwmon/hwmon1/temp2_input"},
			},
		},
		{
			Name: "nct6798-isa-0290",
			Path: "/sys/class/hwmon/hwmon3",
			Fans: []FanChannel{
				{Index: 1, RpmInput: "/sys/class/hwmon/hwmon3/fan1_input", PwmOutput: "/sys/class/hwmon/hwmon3/pwm1"},
				{Index: 2, RpmInput: "/sys/class/hwmon/hwmon3/fan2_input"},
			},
		},
	}
}

func TestResolveFanConfig(t *testing.T) {
	// GIVEN
	config := configuration.HwMonFanConfig{Platform: "nct67", Index: 1}

	// WHEN
	err := ResolveFanConfig(createChips(), &config)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "/sys/class/hwmon/hwmon3/pwm1", config.PwmOutput)
	assert.Equal(t, "/sys/class/hwmon/hwmon3/fan1_input", config.RpmInput)
}

func TestResolveFanConfig_NoPwm(t *testing.T) {
	// GIVEN
	config := configuration.HwMonFanConfig{Platform: "nct67", Index: 2}

	// WHEN
	err := ResolveFanConfig(createChips(), &config)

	// THEN
	assert.EqualError(t, err, "hwmon fan 2 of nct6798-isa-0290 has no pwm output")
}

func TestResolveFanConfig_NoMatch(t *testing.T) {
	// GIVEN
	config := configuration.HwMonFanConfig{Platform: "it87", Index: 1}

	// WHEN
	err := ResolveFanConfig(createChips(), &config)

	// THEN
	assert.EqualError(t, err, "no hwmon fan matched platform 'it87' and index 1")
}

func TestResolveFanConfig_InvalidPlatformPattern(t *testing.T) {
	// GIVEN
	config := configuration.HwMonFanConfig{Platform: "nct(", Index: 1}

	// WHEN
	err := ResolveFanConfig(createChips(), &config)

	// THEN
	assert.ErrorContains(t, err, "invalid platform pattern")
}

func TestResolveSensorConfig(t *testing.T) {
	// GIVEN
	config := configuration.HwMonSensorConfig{Platform: "coretemp", Index: 2}

	// WHEN
	err := ResolveSensorConfig(createChips(), &config)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "/sys/class/hwmon/hwmon1/temp2_input", config.TempInput)
}
