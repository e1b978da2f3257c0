package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/markusressel/hddfan/internal/drives"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var force bool

var tempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Get the current temperature of a drive (°C)",
	Long: `Prints the current temperature of a drive. Drives in standby are not queried,
unless their probe is known to not wake them up or --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		driveList, err := getDrives(driveId)
		if err != nil {
			return err
		}

		ctx := context.Background()
		for _, drive := range driveList {
			value, err := readTemperature(ctx, drive, force)
			if len(driveList) > 1 {
				fmt.Printf("%s: ", drive.GetId())
			}
			switch {
			case errors.Is(err, drives.ErrSpinUpRequired):
				fmt.Println("standby")
			case err != nil:
				return fmt.Errorf("drive %s: %w", drive.GetId(), err)
			default:
				fmt.Printf("%.0f\n", value)
			}
		}
		return nil
	},
}

func readTemperature(ctx context.Context, drive drives.Drive, force bool) (float64, error) {
	if !force && !drive.SupportsStandbyProbe() {
		state, err := drive.ReadPowerState(ctx)
		if err == nil && state == drives.PowerStateStandby {
			return 0, drives.ErrSpinUpRequired
		}
	}
	return drive.ReadTemperature(ctx)
}

func init() {
	tempCmd.Flags().BoolVarP(&force, "force", "f", false, "Query the temperature even if this wakes up the drive")
	Command.AddCommand(tempCmd)
}
