package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/markusressel/hddfan/cmd/global"
	"github.com/markusressel/hddfan/internal/hwmon"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect devices",
	Long:  `Detects all hwmon fans and temperature sensors and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		chips := hwmon.GetChips()
		if len(chips) <= 0 {
			ui.Warning("No hwmon devices with fans or temperature sensors found, is lm-sensors set up?")
			return
		}

		tableConfig := global.TableConfig()

		for _, chip := range chips {
			ui.Printfln("> %s (%s)", chip.Name, chip.Path)

			var fanRows [][]string
			for _, fan := range chip.Fans {
				pwmText := "N/A"
				pwmFile := "N/A"
				if len(fan.PwmOutput) > 0 {
					_, pwmFile = filepath.Split(fan.PwmOutput)
					if pwm, err := util.ReadIntFromFile(fan.PwmOutput); err == nil {
						pwmText = strconv.Itoa(pwm)
					}
				}
				fanRows = append(fanRows, []string{
					"", strconv.Itoa(fan.Index), fan.Label, strconv.Itoa(int(fan.Rpm)), pwmText, pwmFile,
				})
			}
			fanTable := table.Table{
				Headers: []string{"Fans   ", "Index", "Label", "RPM", "PWM", "Output"},
				Rows:    fanRows,
			}

			var sensorRows [][]string
			for _, sensor := range chip.Temps {
				_, file := filepath.Split(sensor.Input)
				sensorRows = append(sensorRows, []string{
					"", strconv.Itoa(sensor.Index), fmt.Sprintf("%s (%s)", sensor.Label, file), fmt.Sprintf("%.1f", sensor.Value),
				})
			}
			sensorTable := table.Table{
				Headers: []string{"Sensors", "Index", "Label", "Value"},
				Rows:    sensorRows,
			}

			tables := []table.Table{fanTable, sensorTable}
			for idx, t := range tables {
				if t.Rows == nil {
					continue
				}
				var buf bytes.Buffer
				if err := t.WriteTable(&buf, tableConfig); err != nil {
					ui.Fatal("Error printing table: %v", err)
				}
				if idx < (len(tables) - 1) {
					ui.Printf(buf.String())
				} else {
					ui.Printfln(buf.String())
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
