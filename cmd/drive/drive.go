package drive

import (
	"fmt"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
)

var driveId string

var Command = &cobra.Command{
	Use:              "drive",
	Short:            "Drive related commands",
	Long:             ``,
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().StringVarP(
		&driveId,
		"id", "i",
		"",
		"Drive ID as specified in the config, all drives if empty",
	)
}

func loadConfig() {
	configPath := configuration.DetectAndReadConfigFile()
	ui.Info("Using configuration file at: %s", configPath)
	configuration.LoadConfig()
	if err := configuration.Validate(); err != nil {
		ui.Fatal("%v", err)
	}
}

// getDrives returns the configured drive with the given id, or all configured drives if id is empty
func getDrives(id string) ([]*drives.BlockDrive, error) {
	loadConfig()

	var result []*drives.BlockDrive
	for _, config := range configuration.CurrentConfig.Drives {
		if len(id) > 0 && config.ID != id {
			continue
		}
		drive, err := drives.NewBlockDrive(config)
		if err != nil {
			return nil, fmt.Errorf("drive %s: %w", config.ID, err)
		}
		result = append(result, drive)
	}

	if len(result) <= 0 {
		if len(id) > 0 {
			return nil, fmt.Errorf("no drive with id found: %s", id)
		}
		return nil, fmt.Errorf("no drives configured")
	}
	return result, nil
}
