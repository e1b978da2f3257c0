package sensors

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/markusressel/hddfan/internal/util"
	"github.com/mitchellh/go-homedir"
)

// FileSensor reads a millidegree value from an arbitrary file
type FileSensor struct {
	Id   string `json:"id"`
	Path string `json:"path"`
}

func (sensor FileSensor) GetId() string {
	return sensor.Id
}

func (sensor FileSensor) GetValue(_ context.Context) (float64, error) {
	filePath := sensor.Path
	if strings.HasPrefix(filePath, "~") {
		expanded, err := homedir.Expand(filePath)
		if err != nil {
			return 0, err
		}
		filePath = filepath.Clean(expanded)
	}

	integer, err := util.ReadIntFromFile(filePath)
	if err != nil {
		return 0, err
	}
	return millidegreesToCelsius(integer), nil
}
