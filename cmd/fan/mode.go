package fan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/markusressel/hddfan/internal/fans"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Get/Set the current pwm mode setting of a fan",
	Long:  ``,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		fan, err := getFan(fanId)
		if err != nil {
			return err
		}
		if !fan.Supports(fans.FeatureControlMode) {
			return fmt.Errorf("fan %s does not support changing its control mode", fan.GetId())
		}

		if len(args) > 0 {
			pwmEnabled, err := parseControlMode(args[0])
			if err != nil {
				return err
			}
			if err = fan.SetPwmEnabled(pwmEnabled); err != nil {
				return err
			}
		}

		pwmEnabled, err := fan.GetPwmEnabled()
		if err != nil {
			return err
		}

		switch pwmEnabled {
		case fans.ControlModeDisabled:
			fmt.Printf("No control, 100%% all the time (%d)", pwmEnabled)
		case fans.ControlModePWM:
			fmt.Printf("Manual PWM control, gives hddfan control (%d)", pwmEnabled)
		case fans.ControlModeAutomatic:
			fmt.Printf("Automatic control by integrated hardware (%d)", pwmEnabled)
		default:
			fmt.Printf("Unknown (%d)", pwmEnabled)
		}
		return nil
	},
}

func parseControlMode(value string) (fans.ControlMode, error) {
	if number, err := strconv.Atoi(value); err == nil {
		mode := fans.ControlMode(number)
		switch mode {
		case fans.ControlModeAutomatic, fans.ControlModePWM, fans.ControlModeDisabled:
			return mode, nil
		}
		return mode, fmt.Errorf("unknown mode: %d, must be a integer in (0..2) or one of: 'auto', 'pwm', 'disabled'", number)
	}

	switch strings.ToLower(value) {
	case "auto":
		return fans.ControlModeAutomatic, nil
	case "pwm":
		return fans.ControlModePWM, nil
	case "disabled":
		return fans.ControlModeDisabled, nil
	}
	return fans.ControlModeDisabled, fmt.Errorf("unknown mode: %s, must be a integer in (0..2) or one of: 'auto', 'pwm', 'disabled'", value)
}

func init() {
	Command.AddCommand(modeCmd)
}
