package drive

import (
	"context"
	"errors"

	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
)

var spinDownCmd = &cobra.Command{
	Use:   "spindown",
	Short: "Put a drive into standby",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(driveId) <= 0 {
			return errors.New("a drive id is required, use --id")
		}
		driveList, err := getDrives(driveId)
		if err != nil {
			return err
		}

		drive := driveList[0]
		if err = drive.SpinDown(context.Background()); err != nil {
			return err
		}
		ui.Success("Drive %s (%s) is spinning down", drive.GetId(), drive.Device())
		return nil
	},
}

func init() {
	Command.AddCommand(spinDownCmd)
}
