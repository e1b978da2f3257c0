package fan

import (
	"fmt"
	"strconv"

	"github.com/markusressel/hddfan/internal"
	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/controller"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/persistence"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var speedCmd = &cobra.Command{
	Use:   "speed",
	Short: "Get/Set the current speed of a fan in percent ([0..100]) of its calibrated range",
	Long:  ``,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()
		loadConfig()

		config, err := getFanConfig(fanId)
		if err != nil {
			return err
		}
		pers := persistence.NewPersistence(configuration.CurrentConfig.DbPath)
		internal.ApplyStoredCalibration(pers, &config, configuration.CurrentConfig.Calibration)

		fan, err := fans.NewFan(config)
		if err != nil {
			return err
		}
		fanController := controller.NewFanController(fan, controller.NewConfig(config, 0))

		if len(args) > 0 {
			pct, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			if pct < 0 || pct > 100 {
				return fmt.Errorf("speed must be in range [0..100], was %v", pct)
			}
			return fanController.Apply(pct)
		}

		pwm, err := fan.GetPwm()
		if err != nil {
			return err
		}
		fmt.Printf("%.1f", fanController.PwmToPercent(pwm))
		return nil
	},
}

func init() {
	Command.AddCommand(speedCmd)
}
