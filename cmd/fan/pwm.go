package fan

import (
	"fmt"
	"strconv"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var pwmCmd = &cobra.Command{
	Use:   "pwm",
	Short: "Get/Set the raw PWM value of a fan ([0..255])",
	Long:  ``,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		fan, err := getFan(fanId)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			pwmValue, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			if pwmValue < configuration.MinPwmValue || pwmValue > configuration.MaxPwmValue {
				return fmt.Errorf("pwm value must be in range [%d..%d], was %d", configuration.MinPwmValue, configuration.MaxPwmValue, pwmValue)
			}
			return fan.SetPwm(pwmValue)
		}

		pwm, err := fan.GetPwm()
		if err != nil {
			return err
		}
		fmt.Printf("%d", pwm)
		return nil
	},
}

func init() {
	Command.AddCommand(pwmCmd)
}
