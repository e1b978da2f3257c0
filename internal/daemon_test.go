package internal

import (
	"path/filepath"
	"testing"

	"github.com/markusressel/hddfan/internal/calibration"
	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPersistence(t *testing.T) persistence.Persistence {
	pers := persistence.NewPersistence(filepath.Join(t.TempDir(), "hddfan.db"))
	require.NoError(t, pers.Init())
	return pers
}

func intPtr(value int) *int {
	return &value
}

var defaultCalibration = configuration.CalibrationConfig{
	FastValue: configuration.DefaultFastValue,
	SlowValue: configuration.DefaultSlowValue,
}

func TestApplyStoredCalibration_FillsUnsetValues(t *testing.T) {
	// GIVEN
	pers := createPersistence(t)
	require.NoError(t, pers.SaveCalibration("case", calibration.Result{StartValue: 70, StopValue: 40}))
	fanConfig := configuration.FanConfig{ID: "case"}

	// WHEN
	ApplyStoredCalibration(pers, &fanConfig, defaultCalibration)

	// THEN
	assert.Nil(t, fanConfig.StartValue)
	require.NotNil(t, fanConfig.StopValue)
	assert.Equal(t, 40, *fanConfig.StopValue)
	require.NotNil(t, fanConfig.SpinUpValue)
	assert.Equal(t, 70, *fanConfig.SpinUpValue)
}

func TestApplyStoredCalibration_KeepsConfiguredValues(t *testing.T) {
	// GIVEN
	pers := createPersistence(t)
	require.NoError(t, pers.SaveCalibration("case", calibration.Result{StartValue: 70, StopValue: 40}))
	fanConfig := configuration.FanConfig{ID: "case", StopValue: intPtr(20)}

	// WHEN
	ApplyStoredCalibration(pers, &fanConfig, defaultCalibration)

	// THEN
	assert.Equal(t, 20, *fanConfig.StopValue)
	require.NotNil(t, fanConfig.SpinUpValue)
	assert.Equal(t, 70, *fanConfig.SpinUpValue)
}

func TestApplyStoredCalibration_Inverted(t *testing.T) {
	// GIVEN
	pers := createPersistence(t)
	require.NoError(t, pers.SaveCalibration("case", calibration.Result{StartValue: 185, StopValue: 215, Inverted: true}))
	fanConfig := configuration.FanConfig{ID: "case"}
	inverted := configuration.CalibrationConfig{FastValue: 0, SlowValue: 255}

	// WHEN
	ApplyStoredCalibration(pers, &fanConfig, inverted)

	// THEN
	require.NotNil(t, fanConfig.StartValue)
	assert.Equal(t, 0, *fanConfig.StartValue)
	assert.Equal(t, 215, *fanConfig.StopValue)
	assert.Equal(t, 185, *fanConfig.SpinUpValue)
}

func TestApplyStoredCalibration_SpinUpOutsideBracketIsIgnored(t *testing.T) {
	// GIVEN
	pers := createPersistence(t)
	require.NoError(t, pers.SaveCalibration("case", calibration.Result{StartValue: 70, StopValue: 40}))
	fanConfig := configuration.FanConfig{ID: "case", StartValue: intPtr(60)}

	// WHEN
	ApplyStoredCalibration(pers, &fanConfig, defaultCalibration)

	// THEN
	assert.Equal(t, 40, *fanConfig.StopValue)
	assert.Nil(t, fanConfig.SpinUpValue)
}

func TestApplyStoredCalibration_NotCalibrated(t *testing.T) {
	// GIVEN
	pers := createPersistence(t)
	fanConfig := configuration.FanConfig{ID: "case"}

	// WHEN
	ApplyStoredCalibration(pers, &fanConfig, defaultCalibration)

	// THEN
	assert.Nil(t, fanConfig.StopValue)
	assert.Nil(t, fanConfig.SpinUpValue)
}

func TestInitializeObjects_NoDrives(t *testing.T) {
	// GIVEN
	config := configuration.Configuration{}

	// WHEN
	_, err := InitializeObjects(&config, createPersistence(t))

	// THEN
	assert.EqualError(t, err, "no valid drive configurations, exiting")
}
