package drives

type PowerState int

const (
	PowerStateUnknown PowerState = iota
	PowerStateActive
	PowerStateStandby
)

func (s PowerState) String() string {
	switch s {
	case PowerStateActive:
		return "active"
	case PowerStateStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// ATA CHECK POWER MODE results (sector count register)
const (
	ataPowerModeStandby = 0x00
	ataPowerModeIdle    = 0x80
	ataPowerModeActive  = 0xff
)

func powerStateFromAta(mode byte) PowerState {
	switch mode {
	case ataPowerModeStandby:
		return PowerStateStandby
	case ataPowerModeIdle, ataPowerModeActive:
		return PowerStateActive
	default:
		// 0x40, 0x41: NV cache power modes, platters may or may not spin
		return PowerStateUnknown
	}
}
