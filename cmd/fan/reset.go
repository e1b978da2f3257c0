package fan

import (
	"errors"
	"os"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/persistence"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the stored calibration of a given fan",
	Long: `Deletes the stored stop and start values of a fan, so that the daemon falls back to the
configured values (or a new calibration) on its next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		config, err := getFanConfig(fanId)
		if err != nil {
			return err
		}

		dbPath := configuration.CurrentConfig.DbPath
		ui.Info("Using persistence at: %s", dbPath)

		p := persistence.NewPersistence(dbPath)
		if err = p.Init(); err != nil {
			return err
		}
		if err = resetCalibration(p, config.ID); err != nil {
			return err
		}
		ui.Success("Done!")
		return nil
	},
}

func resetCalibration(p persistence.Persistence, id string) error {
	if _, err := p.LoadCalibration(id); errors.Is(err, os.ErrNotExist) {
		ui.Info("No stored calibration for fan '%s'", id)
		return nil
	}
	return p.DeleteCalibration(id)
}

func init() {
	Command.AddCommand(resetCmd)
}
