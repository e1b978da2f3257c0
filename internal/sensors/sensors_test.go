package sensors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCpuSensor_File(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "temp1_input")
	require.NoError(t, os.WriteFile(path, []byte("52500\n"), 0o644))

	// WHEN
	sensor, err := NewCpuSensor(&configuration.CpuSensorConfig{Path: path})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, CpuSensorId, sensor.GetId())
	value, err := sensor.GetValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 52.5, value)
}

func TestNewCpuSensor_HwMon(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "temp2_input")
	require.NoError(t, os.WriteFile(path, []byte("61000"), 0o644))
	config := &configuration.CpuSensorConfig{
		HwMon: &configuration.HwMonSensorConfig{
			Platform:  "coretemp",
			Index:     2,
			TempInput: path,
		},
	}

	// WHEN
	sensor, err := NewCpuSensor(config)

	// THEN
	require.NoError(t, err)
	value, err := sensor.GetValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 61.0, value)
}

func TestNewCpuSensor_Missing(t *testing.T) {
	// WHEN
	_, err := NewCpuSensor(&configuration.CpuSensorConfig{})

	// THEN
	assert.Error(t, err)
}

func TestFileSensor_Unreadable(t *testing.T) {
	// GIVEN
	sensor := FileSensor{Id: "cpu", Path: filepath.Join(t.TempDir(), "missing")}

	// WHEN
	_, err := sensor.GetValue(context.Background())

	// THEN
	assert.ErrorIs(t, err, os.ErrNotExist)
}
