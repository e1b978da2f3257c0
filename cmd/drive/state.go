package drive

import (
	"bytes"
	"context"
	"strconv"

	"github.com/markusressel/hddfan/cmd/global"
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the power state of drives",
	Long:  `Prints the power state, temperature and I/O counters of the configured drives without waking them up`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		driveList, err := getDrives(driveId)
		if err != nil {
			return err
		}

		ctx := context.Background()
		var rows [][]string
		for _, drive := range driveList {
			rows = append(rows, stateRow(ctx, drive))
		}

		tab := table.Table{
			Headers: []string{"Drive", "Device", "Probe", "State", "Temp", "Reads", "Writes", "Spin down"},
			Rows:    rows,
		}
		var buf bytes.Buffer
		if err := tab.WriteTable(&buf, global.TableConfig()); err != nil {
			return err
		}
		ui.Printfln(buf.String())
		return nil
	},
}

func stateRow(ctx context.Context, drive *drives.BlockDrive) []string {
	stateText := "N/A"
	state, err := drive.ReadPowerState(ctx)
	if err == nil {
		stateText = state.String()
	}

	tempText := "N/A"
	if temp, err := readTemperature(ctx, drive, false); err == nil {
		tempText = strconv.FormatFloat(temp, 'f', 0, 64)
	}

	readsText, writesText := "N/A", "N/A"
	if counters, err := drive.ReadIoCounters(); err == nil {
		readsText = strconv.FormatUint(counters.Reads, 10)
		writesText = strconv.FormatUint(counters.Writes, 10)
	}

	spinDownText := "disabled"
	if config := drive.GetConfig(); config.SpinDownEnabled() {
		spinDownText = config.SpinDownTimeout.String()
	}

	return []string{
		drive.GetId(), drive.Device(), string(drive.ProbeMethod()), stateText, tempText, readsText, writesText, spinDownText,
	}
}

func init() {
	Command.AddCommand(stateCmd)
}
