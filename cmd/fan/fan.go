package fan

import (
	"fmt"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/hwmon"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
)

var fanId string

var Command = &cobra.Command{
	Use:              "fan",
	Short:            "Fan related commands",
	Long:             ``,
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().StringVarP(
		&fanId,
		"id", "i",
		"",
		"Fan ID as specified in the config",
	)
	_ = Command.MarkPersistentFlagRequired("id")
}

func loadConfig() {
	configPath := configuration.DetectAndReadConfigFile()
	ui.Info("Using configuration file at: %s", configPath)
	configuration.LoadConfig()
	if err := configuration.Validate(); err != nil {
		ui.Fatal("%v", err)
	}
}

func getFanConfig(id string) (configuration.FanConfig, error) {
	for _, config := range configuration.CurrentConfig.Fans {
		if config.ID != id {
			continue
		}
		if config.HwMon != nil {
			if err := hwmon.ResolveFanConfig(hwmon.GetChips(), config.HwMon); err != nil {
				return config, err
			}
		}
		return config, nil
	}
	return configuration.FanConfig{}, fmt.Errorf("no fan with id found: %s", id)
}

func getFan(id string) (fans.Fan, error) {
	loadConfig()

	config, err := getFanConfig(id)
	if err != nil {
		return nil, err
	}
	return fans.NewFan(config)
}
