package drives

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

type Drive interface {
	GetId() string
	GetConfig() configuration.DriveConfig

	// ReadTemperature returns the current temperature in °C
	ReadTemperature(ctx context.Context) (float64, error)
	// ReadPowerState queries the power state without spinning up the drive
	ReadPowerState(ctx context.Context) (PowerState, error)
	// SpinDown puts the drive into standby, success means the command was accepted
	SpinDown(ctx context.Context) error
	ReadIoCounters() (IoCounters, error)

	// SupportsStandbyProbe indicates that ReadTemperature does not wake up a drive in standby
	SupportsStandbyProbe() bool
}

type BlockDrive struct {
	Config configuration.DriveConfig `json:"config"`

	device  string
	sysBase string
	prober  tempProber
}

// NewBlockDrive resolves the configured device and selects its temperature probe method
func NewBlockDrive(config configuration.DriveConfig) (*BlockDrive, error) {
	device, err := resolveDevice(config.Device)
	if err != nil {
		return nil, err
	}
	return newBlockDriveAt(config, device, sysfsBase)
}

func newBlockDriveAt(config configuration.DriveConfig, device string, sysBase string) (*BlockDrive, error) {
	methods := configuration.ProbeMethods
	if config.GetProbe() != configuration.ProbeAuto {
		methods = []configuration.ProbeMethod{config.GetProbe()}
	}

	prober, err := findProber(config.ID, methods, device, sysBase)
	if err != nil {
		return nil, err
	}

	return &BlockDrive{
		Config:  config,
		device:  device,
		sysBase: sysBase,
		prober:  prober,
	}, nil
}

func (d *BlockDrive) GetId() string {
	return d.Config.ID
}

func (d *BlockDrive) GetConfig() configuration.DriveConfig {
	return d.Config
}

// Device returns the resolved device node path
func (d *BlockDrive) Device() string {
	return d.device
}

func (d *BlockDrive) ProbeMethod() configuration.ProbeMethod {
	return d.prober.Method()
}

func (d *BlockDrive) SupportsStandbyProbe() bool {
	return d.Config.StandbySafeProbe
}

func (d *BlockDrive) ReadTemperature(ctx context.Context) (float64, error) {
	return d.prober.ReadTemperature(ctx)
}

func (d *BlockDrive) ReadPowerState(ctx context.Context) (PowerState, error) {
	state, err := ataCheckPowerMode(d.device)
	if err == nil || !errors.Is(err, ErrUnsupported) {
		return state, err
	}

	hdparm, lookErr := exec.LookPath("hdparm")
	if lookErr != nil {
		return PowerStateUnknown, err
	}
	out, err := util.SafeCmdExecution(ctx, hdparm, []string{"-C", d.device}, commandTimeout)
	if err != nil {
		return PowerStateUnknown, err
	}
	return parseHdparmPowerState(out), nil
}

func (d *BlockDrive) SpinDown(ctx context.Context) error {
	err := ataStandbyNow(d.device)
	if err == nil || !errors.Is(err, ErrUnsupported) {
		return err
	}

	hdparm, lookErr := exec.LookPath("hdparm")
	if lookErr != nil {
		return err
	}
	ui.Debug("Drive '%s': falling back to hdparm for spin down", d.GetId())
	_, err = util.SafeCmdExecution(ctx, hdparm, []string{"-y", d.device}, commandTimeout)
	if err != nil {
		return fmt.Errorf("hdparm -y %s: %w", d.device, err)
	}
	return nil
}

func (d *BlockDrive) ReadIoCounters() (IoCounters, error) {
	return readIoCountersAt(d.sysBase, filepath.Base(d.device))
}

// parseHdparmPowerState parses the output of "hdparm -C", e.g. " drive state is:  standby"
func parseHdparmPowerState(output string) PowerState {
	for _, line := range strings.Split(output, "\n") {
		_, state, found := strings.Cut(line, "drive state is:")
		if !found {
			continue
		}
		switch strings.TrimSpace(state) {
		case "active/idle", "idle":
			return PowerStateActive
		case "standby", "sleeping":
			return PowerStateStandby
		}
	}
	return PowerStateUnknown
}
