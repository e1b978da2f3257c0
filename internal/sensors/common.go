package sensors

import (
	"context"
	"errors"

	"github.com/markusressel/hddfan/internal/configuration"
)

const CpuSensorId = "cpu"

type Sensor interface {
	GetId() string

	// GetValue returns the current temperature in °C
	GetValue(ctx context.Context) (float64, error)
}

func NewCpuSensor(config *configuration.CpuSensorConfig) (Sensor, error) {
	if config == nil {
		return nil, errors.New("no cpu sensor configured")
	}

	if config.HwMon != nil {
		return &HwmonSensor{
			Id:    CpuSensorId,
			Index: config.HwMon.Index,
			Input: config.HwMon.TempInput,
		}, nil
	}

	if len(config.Path) > 0 {
		return &FileSensor{
			Id:   CpuSensorId,
			Path: config.Path,
		}, nil
	}

	return nil, errors.New("no matching sensor type for cpu sensor")
}

func millidegreesToCelsius(value int) float64 {
	return float64(value) / 1000
}
