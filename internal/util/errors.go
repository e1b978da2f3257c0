package util

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// IsPersistentDeviceError reports whether err indicates that a device is gone or no longer
// accessible, as opposed to a single failed read.
func IsPersistentDeviceError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ENXIO)
}

// FailureCounter tracks consecutive failures of a single device.
// Once the device is considered persistently failed, it stays that way.
type FailureCounter struct {
	maxConsecutive int
	consecutive    int
	persistent     bool
}

func NewFailureCounter(maxConsecutive int) *FailureCounter {
	return &FailureCounter{
		maxConsecutive: maxConsecutive,
	}
}

// Failure records a failed operation and returns true exactly once:
// when this failure turned the device into a persistently failed one.
func (c *FailureCounter) Failure(err error) bool {
	if c.persistent {
		return false
	}
	c.consecutive++
	if IsPersistentDeviceError(err) || (c.maxConsecutive > 0 && c.consecutive > c.maxConsecutive) {
		c.persistent = true
		return true
	}
	return false
}

// Success resets the consecutive failure count
func (c *FailureCounter) Success() {
	if c.persistent {
		return
	}
	c.consecutive = 0
}

func (c *FailureCounter) IsPersistent() bool {
	return c.persistent
}

func (c *FailureCounter) Consecutive() int {
	return c.consecutive
}
