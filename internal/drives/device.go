package drives

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	devBase   = "/dev"
	byIdBase  = "/dev/disk/by-id"
	sysfsBase = "/sys"
)

func resolveDevice(device string) (string, error) {
	return resolveDeviceAt(device, devBase, byIdBase)
}

// resolveDeviceAt turns an absolute path, a kernel name (sda) or a by-id name into the
// canonical device node path.
func resolveDeviceAt(device, devBase, byIdBase string) (string, error) {
	if strings.HasPrefix(device, "/") {
		resolved, err := filepath.EvalSymlinks(device)
		if err != nil {
			return "", fmt.Errorf("failed to resolve device %s: %w", device, err)
		}
		return resolved, nil
	}

	devPath := filepath.Join(devBase, device)
	if resolved, err := filepath.EvalSymlinks(devPath); err == nil {
		return resolved, nil
	}

	byIdPath := filepath.Join(byIdBase, device)
	if resolved, err := filepath.EvalSymlinks(byIdPath); err == nil {
		return resolved, nil
	}

	_, err := filepath.EvalSymlinks(devPath)
	return "", fmt.Errorf("failed to resolve device %s: %w", device, err)
}

// IoCounters are the cumulative completed read and write requests of a block device
type IoCounters struct {
	Reads  uint64
	Writes uint64
}

func readIoCountersAt(sysBase, deviceName string) (IoCounters, error) {
	path := filepath.Join(sysBase, "block", deviceName, "stat")
	data, err := os.ReadFile(path)
	if err != nil {
		return IoCounters{}, err
	}
	return parseBlockStat(string(data))
}

// parseBlockStat parses the content of /sys/block/<dev>/stat.
// Field 1 is "reads completed", field 5 is "writes completed".
func parseBlockStat(content string) (IoCounters, error) {
	fields := strings.Fields(content)
	if len(fields) < 5 {
		return IoCounters{}, fmt.Errorf("unexpected block stat format: %q", content)
	}
	reads, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return IoCounters{}, fmt.Errorf("invalid read counter: %w", err)
	}
	writes, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return IoCounters{}, fmt.Errorf("invalid write counter: %w", err)
	}
	return IoCounters{Reads: reads, Writes: writes}, nil
}
