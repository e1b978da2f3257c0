package sensors

import (
	"context"

	"github.com/markusressel/hddfan/internal/util"
)

type HwmonSensor struct {
	Id    string `json:"id"`
	Index int    `json:"index"`
	Input string `json:"input"`
}

func (sensor HwmonSensor) GetId() string {
	return sensor.Id
}

func (sensor HwmonSensor) GetValue(_ context.Context) (float64, error) {
	integer, err := util.ReadIntFromFile(sensor.Input)
	if err != nil {
		return 0, err
	}
	return millidegreesToCelsius(integer), nil
}
