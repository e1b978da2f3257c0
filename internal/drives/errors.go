package drives

import "errors"

var (
	// ErrNotAvailable is returned when a drive does not report a temperature at all
	ErrNotAvailable = errors.New("temperature not available")
	// ErrSpinUpRequired is returned when reading would wake up a drive in standby
	ErrSpinUpRequired = errors.New("drive is in standby, reading would spin it up")
	// ErrUnsupported is returned by a probe method that cannot be used for a drive on this system
	ErrUnsupported = errors.New("probe method unsupported")
)
