package drives

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	hdioDriveCmd = 0x031f // ioctl: ATA drive command

	ataOpCheckPowerMode = 0xe5 // CHECK POWER MODE
	ataOpStandbyNow     = 0xe0 // STANDBY IMMEDIATE
	ataOpSmart          = 0xb0 // SMART
	smartReadData       = 0xd0 // SMART READ DATA subcommand

	smartAttrAirflow = 190 // SMART attribute: airflow temp
	smartAttrTemp    = 194 // SMART attribute: drive temp
)

// ataDriveCmd issues an HDIO_DRIVE_CMD ioctl. args holds the 4 byte command header
// (command, sector number, feature, sector count), followed by count*512 bytes of response data.
// After the call args[2] contains the sector count register.
func ataDriveCmd(device string, args []byte) error {
	f, err := os.OpenFile(device, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", device, err)
	}
	defer f.Close()

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		hdioDriveCmd,
		uintptr(unsafe.Pointer(&args[0])),
	)
	if errno != 0 {
		if errors.Is(errno, unix.ENOTTY) || errors.Is(errno, unix.EINVAL) {
			return fmt.Errorf("HDIO_DRIVE_CMD on %s: %w: %w", device, ErrUnsupported, errno)
		}
		return fmt.Errorf("HDIO_DRIVE_CMD on %s: %w", device, errno)
	}
	return nil
}

// ataCheckPowerMode queries the power mode without spinning up the drive
func ataCheckPowerMode(device string) (PowerState, error) {
	args := []byte{ataOpCheckPowerMode, 0, 0, 0}
	if err := ataDriveCmd(device, args); err != nil {
		return PowerStateUnknown, err
	}
	return powerStateFromAta(args[2]), nil
}

func ataStandbyNow(device string) error {
	return ataDriveCmd(device, []byte{ataOpStandbyNow, 0, 0, 0})
}

// newSmartReadDataArgs builds the HDIO_DRIVE_CMD buffer for SMART READ DATA.
// Header layout: command, sector number, feature, sector count.
// The kernel only transfers data back when the sector count is non-zero.
func newSmartReadDataArgs() []byte {
	buf := make([]byte, 4+512)
	buf[0] = ataOpSmart
	buf[1] = 1
	buf[2] = smartReadData
	buf[3] = 1 // one sector of attribute data
	return buf
}

// ataSmartTemperature reads the temperature in °C from the SMART attribute table
func ataSmartTemperature(device string) (float64, error) {
	buf := newSmartReadDataArgs()
	if err := ataDriveCmd(device, buf); err != nil {
		return 0, err
	}
	return parseAtaSmartAttributes(buf[4:], device)
}

// parseAtaSmartAttributes parses the SMART READ DATA attribute table.
// data is the 512 byte payload without the ioctl header.
func parseAtaSmartAttributes(data []byte, device string) (float64, error) {
	// offset 2: attribute table, 30 entries of 12 bytes
	// entry: id(1), flags(2), current(1), worst(1), raw(6), reserved(1)
	for i := 0; i < 30; i++ {
		off := 2 + i*12
		if off+12 > len(data) {
			break
		}
		id := data[off]
		if id == smartAttrTemp || id == smartAttrAirflow {
			return float64(data[off+5]), nil
		}
	}
	return 0, fmt.Errorf("no temperature attribute in SMART data for %s: %w", device, ErrNotAvailable)
}
