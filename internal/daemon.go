package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/controller"
	"github.com/markusressel/hddfan/internal/drives"
	"github.com/markusressel/hddfan/internal/fans"
	"github.com/markusressel/hddfan/internal/hwmon"
	"github.com/markusressel/hddfan/internal/loop"
	"github.com/markusressel/hddfan/internal/persistence"
	"github.com/markusressel/hddfan/internal/sensors"
	"github.com/markusressel/hddfan/internal/statistics"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
	"github.com/oklog/run"
)

func RunDaemon() {
	if getProcessOwner() != "root" {
		ui.Fatal("Fan control requires root permissions to be able to modify fan speeds and query drives, please run hddfan as root")
	}

	pers := persistence.NewPersistence(configuration.CurrentConfig.DbPath)

	controlLoop, err := InitializeObjects(&configuration.CurrentConfig, pers)
	if err != nil {
		ui.Fatal("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	{
		// === control loop
		g.Add(func() error {
			err := controlLoop.Run(ctx)
			ui.Info("Control loop stopped.")
			return err
		}, func(err error) {
			if err != nil {
				ui.Warning("Something went wrong: %v", err)
			}
			cancel()
		})
	}
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case s := <-sig:
				ui.Info("Received %s signal, exiting...", s)
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	err = g.Run()
	controlLoop.Shutdown()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ui.Info("Done.")
	os.Exit(0)
}

// InitializeObjects resolves all configured devices and builds the control loop
func InitializeObjects(config *configuration.Configuration, pers persistence.Persistence) (*loop.ControlLoop, error) {
	if err := hwmon.ResolveConfig(config); err != nil {
		return nil, fmt.Errorf("%w. Run 'hddfan detect' again and correct any mistake", err)
	}

	var driveList []drives.Drive
	for _, driveConfig := range config.Drives {
		drive, err := drives.NewBlockDrive(driveConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to process drive configuration %s: %w", driveConfig.ID, err)
		}
		ui.Info("Drive %s: %s, temperature via %s", drive.GetId(), drive.Device(), drive.ProbeMethod())
		driveList = append(driveList, drive)
	}

	var cpu sensors.Sensor
	if config.Cpu != nil {
		sensor, err := sensors.NewCpuSensor(config.Cpu)
		if err != nil {
			return nil, fmt.Errorf("unable to process cpu sensor configuration: %w", err)
		}
		cpu = sensor
	}

	var controllers []*controller.FanController
	for _, fanConfig := range config.Fans {
		ApplyStoredCalibration(pers, &fanConfig, config.Calibration)

		fan, err := fans.NewFan(fanConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to process fan configuration %s: %w", fanConfig.ID, err)
		}
		controllers = append(controllers, controller.NewFanController(fan, controller.NewConfig(fanConfig, config.StartupBoost)))
	}

	if len(driveList) == 0 {
		return nil, errors.New("no valid drive configurations, exiting")
	}
	if len(controllers) == 0 {
		return nil, errors.New("no valid fan configurations, exiting")
	}

	controlLoop := loop.New(loop.NewOptions(*config), driveList, cpu, controllers)

	if config.Statistics.Enabled {
		writer, err := statistics.NewTextfileWriter(
			config.Statistics.Textfile,
			statistics.NewDriveCollector(controlLoop),
			statistics.NewFanCollector(controlLoop),
			statistics.NewLoopCollector(controlLoop),
		)
		if err != nil {
			return nil, err
		}
		ui.Info("Writing statistics to %s", writer.Path())
		controlLoop.OnCycle(func(result loop.CycleResult) {
			if err := writer.Write(); err != nil {
				ui.Warning("Cannot write statistics: %v", err)
			}
		})
	}

	return controlLoop, nil
}

// ApplyStoredCalibration fills in stop and spin up values left unset in the configuration
// from a previous calibration run of the fan.
func ApplyStoredCalibration(pers persistence.Persistence, fanConfig *configuration.FanConfig, calibrationConfig configuration.CalibrationConfig) {
	if fanConfig.StopValue != nil && fanConfig.SpinUpValue != nil {
		return
	}

	stored, err := pers.LoadCalibration(fanConfig.ID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			ui.Warning("Unable to load calibration of fan %s: %v", fanConfig.ID, err)
		}
		return
	}
	ui.Info("Fan %s: using calibration from %s (start: %d, stop: %d)", fanConfig.ID, stored.CalibratedAt.Format("2006-01-02 15:04:05"), stored.StartValue, stored.StopValue)

	if fanConfig.StartValue == nil && stored.Inverted {
		fastValue := calibrationConfig.FastValue
		fanConfig.StartValue = &fastValue
	}
	if fanConfig.StopValue == nil {
		stopValue := stored.StopValue
		fanConfig.StopValue = &stopValue
	}
	if fanConfig.SpinUpValue == nil {
		spinUpValue := stored.StartValue
		start, stop := fanConfig.GetStartValue(), fanConfig.GetStopValue()
		if util.CoerceUnordered(spinUpValue, start, stop) != spinUpValue {
			ui.Warning("Fan %s: calibrated start value %d is outside of [%d..%d], ignoring it", fanConfig.ID, spinUpValue, stop, start)
			return
		}
		fanConfig.SpinUpValue = &spinUpValue
	}
}

func getProcessOwner() string {
	stdout, err := exec.Command("ps", "-o", "user=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		ui.Fatal("Error checking process owner: %v", err)
	}
	return strings.TrimSpace(string(stdout))
}
