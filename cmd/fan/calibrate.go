package fan

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/hddfan/cmd/global"
	"github.com/markusressel/hddfan/internal/calibration"
	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/persistence"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var dryRun bool

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Runs the calibration sequence for a fan",
	Long: `Sweeps the pwm value of a fan from full speed down until it stops and back up until it
starts again, and stores the resulting stop and start values for the daemon to use.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fan, err := getFan(fanId)
		if err != nil {
			return err
		}

		dbPath := configuration.CurrentConfig.DbPath
		ui.Info("Using persistence at: %s", dbPath)
		p := persistence.NewPersistence(dbPath)
		if err = p.Init(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		calibrator := calibration.NewCalibrator(fan, configuration.CurrentConfig.Calibration)
		calibrator.OnSample = func(sample calibration.Sample) {
			ui.Debug("%s: pwm %d -> %d..%d rpm", sample.Phase, sample.Pwm, sample.MinRpm, sample.MaxRpm)
		}

		ui.Info("Calibrating fan '%s', this may take a while...", fan.GetId())
		result, err := calibrator.Calibrate(ctx)
		if err != nil {
			ui.Error("Calibration of fan '%s' failed: %v", fan.GetId(), err)
			return err
		}

		printCalibration(fan.GetId(), result)

		if dryRun {
			ui.Info("Dry run, not saving the calibration result")
			return nil
		}
		if err = p.SaveCalibration(fan.GetId(), result); err != nil {
			return err
		}
		ui.Success("Done!")
		return nil
	},
}

func printCalibration(id string, result calibration.Result) {
	ui.Printfln(id)
	tab := table.Table{
		Headers: []string{"", ""},
		Rows: [][]string{
			{"Stop PWM", strconv.Itoa(result.StopValue)},
			{"Start PWM", strconv.Itoa(result.StartValue)},
			{"Inverted", strconv.FormatBool(result.Inverted)},
		},
	}
	var buf bytes.Buffer
	if err := tab.WriteTable(&buf, global.TableConfig()); err != nil {
		ui.Fatal("Error printing table: %v", err)
	}
	ui.Printfln(buf.String())

	values := rpmCurve(result.Samples, calibration.PhaseRampDown)
	if len(values) <= 1 {
		return
	}
	graph := asciigraph.Plot(values, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption("RPM / PWM"))
	ui.Printfln(graph)
}

// rpmCurve returns the max rpm of all samples of the given phase, ordered from slow to fast
func rpmCurve(samples []calibration.Sample, phase calibration.Phase) []float64 {
	var values []float64
	for _, sample := range samples {
		if sample.Phase == phase {
			values = append(values, float64(sample.MaxRpm))
		}
	}
	if phase == calibration.PhaseRampDown {
		slices.Reverse(values)
	}
	return values
}

func init() {
	calibrateCmd.Flags().BoolVarP(&dryRun, "dry-run", "", false, "Only print the result, do not store it")
	Command.AddCommand(calibrateCmd)
}
