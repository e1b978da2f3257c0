package drives

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/ui"
	"github.com/markusressel/hddfan/internal/util"
)

const commandTimeout = 10 * time.Second

const (
	// smartctl exit status bit 0: command line did not parse
	smartctlExitFatal   = 1
	// smartctl exit status bit 1: device is in a low-power mode and "-n standby" skipped it
	smartctlExitStandby = 2
)

type tempProber interface {
	Method() configuration.ProbeMethod
	// ReadTemperature returns the current drive temperature in °C
	ReadTemperature(ctx context.Context) (float64, error)
}

// newProber builds a prober for the given method, or returns an error wrapping
// ErrUnsupported if the method cannot be used for this device.
func newProber(method configuration.ProbeMethod, device string, sysBase string) (tempProber, error) {
	switch method {
	case configuration.ProbeDrivetemp:
		return newDrivetempProber(sysBase, filepath.Base(device))
	case configuration.ProbeSmart:
		return newSmartProber(device)
	case configuration.ProbeSmartctl:
		return newCommandProber(method, "smartctl", device)
	case configuration.ProbeHddtemp:
		return newCommandProber(method, "hddtemp", device)
	default:
		return nil, fmt.Errorf("unknown probe method %s", method)
	}
}

// findProber returns the first supported prober of the given methods
func findProber(driveId string, methods []configuration.ProbeMethod, device string, sysBase string) (tempProber, error) {
	for _, method := range methods {
		prober, err := newProber(method, device, sysBase)
		if err == nil {
			ui.Debug("Drive '%s': using temperature probe method '%s'", driveId, method)
			return prober, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		ui.Info("Drive '%s' does not support probing method '%s': %v", driveId, method, err)
	}
	return nil, fmt.Errorf("drive %s: no supported temperature probe method: %w", driveId, ErrNotAvailable)
}

type drivetempProber struct {
	path string
}

func newDrivetempProber(sysBase, deviceName string) (*drivetempProber, error) {
	path, err := findSysfsTempInput(sysBase, deviceName)
	if err != nil {
		return nil, err
	}
	return &drivetempProber{path: path}, nil
}

func (p *drivetempProber) Method() configuration.ProbeMethod {
	return configuration.ProbeDrivetemp
}

func (p *drivetempProber) ReadTemperature(_ context.Context) (float64, error) {
	millidegrees, err := util.ReadIntFromFile(p.path)
	if err != nil {
		return 0, err
	}
	return float64(millidegrees) / 1000, nil
}

// findSysfsTempInput locates the hwmon temperature input of a block device
// (drivetemp for SATA, nvme-hwmon for NVMe)
func findSysfsTempInput(sysBase, deviceName string) (string, error) {
	patterns := []string{
		fmt.Sprintf("%s/class/block/%s/device/hwmon/hwmon*/temp*_input", sysBase, deviceName),
	}
	// nvme0n1 -> nvme0 controller
	if strings.HasPrefix(deviceName, "nvme") {
		ctrl := deviceName
		if idx := strings.Index(deviceName[4:], "n"); idx >= 0 {
			ctrl = deviceName[:4+idx]
		}
		patterns = append(patterns, fmt.Sprintf("%s/class/nvme/%s/hwmon*/temp*_input", sysBase, ctrl))
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		return selectTempInput(matches), nil
	}
	return "", fmt.Errorf("no sysfs hwmon temperature input for %s (is the drivetemp module loaded?): %w", deviceName, ErrUnsupported)
}

// selectTempInput prefers temp1_input (composite/device temperature)
func selectTempInput(paths []string) string {
	for _, p := range paths {
		if strings.HasSuffix(p, "temp1_input") {
			return p
		}
	}
	return paths[0]
}

type smartProber struct {
	device string
	read   func(device string) (float64, error)
}

func newSmartProber(device string) (*smartProber, error) {
	return newSmartProberWith(device, ataCheckPowerMode, ataSmartTemperature)
}

// newSmartProberWith only accepts the device if a SMART READ DATA round trip
// yields a temperature, so that unsupported devices fall through to the next method.
func newSmartProberWith(
	device string,
	checkPowerMode func(device string) (PowerState, error),
	read func(device string) (float64, error),
) (*smartProber, error) {
	// CHECK POWER MODE tells us whether the device speaks ATA without waking it up
	if _, err := checkPowerMode(device); err != nil {
		return nil, err
	}
	if _, err := read(device); err != nil {
		if errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		return nil, fmt.Errorf("SMART READ DATA on %s: %w: %w", device, ErrUnsupported, err)
	}
	return &smartProber{device: device, read: read}, nil
}

func (p *smartProber) Method() configuration.ProbeMethod {
	return configuration.ProbeSmart
}

func (p *smartProber) ReadTemperature(_ context.Context) (float64, error) {
	return p.read(p.device)
}

type commandProber struct {
	method     configuration.ProbeMethod
	executable string
	device     string
}

func newCommandProber(method configuration.ProbeMethod, name string, device string) (*commandProber, error) {
	executable, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", name, ErrUnsupported)
	}
	return &commandProber{
		method:     method,
		executable: executable,
		device:     device,
	}, nil
}

func (p *commandProber) Method() configuration.ProbeMethod {
	return p.method
}

func (p *commandProber) ReadTemperature(ctx context.Context) (float64, error) {
	switch p.method {
	case configuration.ProbeSmartctl:
		out, err := util.SafeCmdExecution(ctx, p.executable, []string{"-n", "standby", "-A", p.device}, commandTimeout)
		return interpretSmartctlResult(out, err)
	default:
		out, err := util.SafeCmdExecution(ctx, p.executable, []string{"-n", "-u", "C", p.device}, commandTimeout)
		if err != nil {
			return 0, err
		}
		return parseHddtempOutput(out)
	}
}

// interpretSmartctlResult maps the smartctl exit status bitmask onto a temperature.
// Bits 0 and 1 mean the attributes could not be read, the remaining bits report
// health and log conditions and still come with a valid attribute table.
func interpretSmartctlResult(out string, err error) (float64, error) {
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, err
		}
		code := exitErr.ExitCode()
		if code&smartctlExitStandby != 0 {
			return 0, ErrSpinUpRequired
		}
		if code&smartctlExitFatal != 0 {
			return 0, err
		}
		temp, parseErr := parseSmartctlTemperature(out)
		if parseErr != nil {
			return 0, fmt.Errorf("smartctl exited with status %d: %w", code, parseErr)
		}
		ui.Debug("smartctl reported status %d, using attribute table anyway", code)
		return temp, nil
	}
	return parseSmartctlTemperature(out)
}

// parseSmartctlTemperature extracts the temperature from "smartctl -A" output, either from
// the ATA attribute table or from the SCSI "Current Drive Temperature" line.
func parseSmartctlTemperature(output string) (float64, error) {
	var airflow *float64
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Current Drive Temperature:") {
			fields := strings.Fields(strings.TrimPrefix(line, "Current Drive Temperature:"))
			if len(fields) > 0 {
				if value, err := strconv.ParseFloat(fields[0], 64); err == nil {
					return value, nil
				}
			}
			continue
		}

		// ID# ATTRIBUTE_NAME FLAG VALUE WORST THRESH TYPE UPDATED WHEN_FAILED RAW_VALUE
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || (id != smartAttrTemp && id != smartAttrAirflow) {
			continue
		}
		value, err := strconv.ParseFloat(fields[9], 64)
		if err != nil {
			continue
		}
		if id == smartAttrTemp {
			return value, nil
		}
		airflow = &value
	}
	if airflow != nil {
		return *airflow, nil
	}
	return 0, fmt.Errorf("no temperature in smartctl output: %w", ErrNotAvailable)
}

func parseHddtempOutput(output string) (float64, error) {
	text := strings.TrimSpace(output)
	if strings.Contains(text, "sleeping") {
		return 0, ErrSpinUpRequired
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected hddtemp output %q: %w", text, ErrNotAvailable)
	}
	return value, nil
}
