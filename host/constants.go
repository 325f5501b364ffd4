package host

import (
	"fmt"
	"time"
)

// Controller limits.
const (
	MaxCmdLength  = 2 // Command bytes the Transfer Mode count field can express
	MaxAddrLength = 4 // Address bytes supported for PIO and mapped access
	MaxDummy      = 0x3F

	// DefaultPollAttempts and DefaultPollInterval bound every register poll.
	DefaultPollAttempts = 10000
	DefaultPollInterval = time.Microsecond

	// DefaultTimeoutCeiling is the largest transfer timeout accepted.
	DefaultTimeoutCeiling = 200 * time.Millisecond

	// DefaultConfigLockTimeout bounds acquisition of the device binding lock.
	DefaultConfigLockTimeout = DefaultTimeoutCeiling

	// DefaultMapBase is the bus address of the memory-mapped window.
	DefaultMapBase = 0x60000000
	// DefaultMapSize is the size of the memory-mapped window.
	DefaultMapSize = 0x00800000

	// DefaultClockHz is the controller input clock.
	DefaultClockHz = 200_000_000
	// DefaultMaxFrequency is the fastest bus clock the controller drives.
	DefaultMaxFrequency = 50_000_000

	// Clock divider limits (even values only, stored as div/2-1 in 4 bits).
	minClockDivider = 2
	maxClockDivider = 32
)

// IOMode selects how many data lines each phase uses.
type IOMode uint8

// IO modes. The command phase always uses a single line.
const (
	IOModeSingle   IOMode = iota // 1-1-1
	IOModeDual                   // 1-1-2
	IOModeDual112                // 1-1-2
	IOModeDual122                // 1-2-2
	IOModeQuad                   // 1-4-4
	IOModeQuad114                // 1-1-4
	IOModeQuad144                // 1-4-4
	IOModeOctal                  // 1-8-8
	IOModeOctal118               // 1-1-8
	IOModeOctal188               // 1-8-8
)

// String returns the mode name and its cmd-addr-data line counts.
func (m IOMode) String() string {
	switch m {
	case IOModeSingle:
		return "single (1-1-1)"
	case IOModeDual:
		return "dual (1-1-2)"
	case IOModeDual112:
		return "dual 1-1-2"
	case IOModeDual122:
		return "dual 1-2-2"
	case IOModeQuad:
		return "quad (1-4-4)"
	case IOModeQuad114:
		return "quad 1-1-4"
	case IOModeQuad144:
		return "quad 1-4-4"
	case IOModeOctal:
		return "octal (1-8-8)"
	case IOModeOctal118:
		return "octal 1-1-8"
	case IOModeOctal188:
		return "octal 1-8-8"
	default:
		return fmt.Sprintf("unknown io mode (%d)", uint8(m))
	}
}

// ParseIOMode maps a mode name such as "quad-1-1-4" or "octal" to an
// [IOMode].
func ParseIOMode(s string) (IOMode, error) {
	modes := map[string]IOMode{
		"single":      IOModeSingle,
		"dual":        IOModeDual,
		"dual-1-1-2":  IOModeDual112,
		"dual-1-2-2":  IOModeDual122,
		"quad":        IOModeQuad,
		"quad-1-1-4":  IOModeQuad114,
		"quad-1-4-4":  IOModeQuad144,
		"octal":       IOModeOctal,
		"octal-1-1-8": IOModeOctal118,
		"octal-1-8-8": IOModeOctal188,
	}
	if m, ok := modes[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown io mode %q", s)
}

// DataRate selects which phases transfer on both clock edges.
type DataRate uint8

// Data rates, named by the cmd-addr-data edge usage.
const (
	RateSingle DataRate = iota // S-S-S
	RateSSD                    // S-S-D (data DDR)
	RateSDD                    // S-D-D (address and data DDR)
	RateDual                   // D-D-D
)

// String returns a human-readable data rate name.
func (r DataRate) String() string {
	switch r {
	case RateSingle:
		return "sdr"
	case RateSSD:
		return "ssd"
	case RateSDD:
		return "sdd"
	case RateDual:
		return "ddr"
	default:
		return fmt.Sprintf("unknown data rate (%d)", uint8(r))
	}
}

// ParseDataRate maps "sdr", "ssd", "sdd" or "ddr" to a [DataRate].
func ParseDataRate(s string) (DataRate, error) {
	switch s {
	case "sdr", "single":
		return RateSingle, nil
	case "ssd":
		return RateSSD, nil
	case "sdd":
		return RateSDD, nil
	case "ddr", "dual":
		return RateDual, nil
	default:
		return 0, fmt.Errorf("unknown data rate %q", s)
	}
}

// Endian is the byte order of multi-byte data on the bus.
type Endian uint8

// Endianness values. Only [EndianLittle] is supported by the controller.
const (
	EndianLittle Endian = iota
	EndianBig
)

// Direction is the data phase direction of a packet.
type Direction uint8

// Packet directions.
const (
	DirTX Direction = iota // Host to peripheral
	DirRX                  // Peripheral to host
)

// String returns "tx" or "rx".
func (d Direction) String() string {
	if d == DirRX {
		return "rx"
	}
	return "tx"
}

// XferMode selects the datapath used for a transfer.
type XferMode uint8

// Transfer modes.
const (
	ModePIO XferMode = iota
	ModeDMA
)

// String returns "pio" or "dma".
func (m XferMode) String() string {
	switch m {
	case ModePIO:
		return "pio"
	case ModeDMA:
		return "dma"
	default:
		return fmt.Sprintf("unknown mode (%d)", uint8(m))
	}
}

// ConfigMask selects the device parameters a [Controller.Configure] call
// applies.
type ConfigMask uint32

// Configuration mask bits.
const (
	ConfigNone        ConfigMask = 0
	ConfigFrequency   ConfigMask = 1 << 0
	ConfigIOMode      ConfigMask = 1 << 1
	ConfigDataRate    ConfigMask = 1 << 2
	ConfigCPP         ConfigMask = 1 << 3
	ConfigEndian      ConfigMask = 1 << 4
	ConfigCEPolarity  ConfigMask = 1 << 5
	ConfigDQS         ConfigMask = 1 << 6
	ConfigRXDummy     ConfigMask = 1 << 7
	ConfigTXDummy     ConfigMask = 1 << 8
	ConfigReadCmd     ConfigMask = 1 << 9
	ConfigWriteCmd    ConfigMask = 1 << 10
	ConfigCmdLength   ConfigMask = 1 << 11
	ConfigAddrLength  ConfigMask = 1 << 12
	ConfigMemBoundary ConfigMask = 1 << 13
	ConfigBreakTime   ConfigMask = 1 << 14
	ConfigCENum       ConfigMask = 1 << 15
	ConfigAll         ConfigMask = 1<<16 - 1

	// configIncremental is the set adjustable without a full configuration.
	configIncremental = ConfigFrequency | ConfigIOMode | ConfigCENum |
		ConfigDataRate | ConfigCmdLength | ConfigAddrLength
)

// EventType identifies a controller event a callback can subscribe to.
type EventType uint8

// Event types.
const (
	EventXferComplete EventType = iota
	EventBusError
)

// String returns a human-readable event name.
func (e EventType) String() string {
	switch e {
	case EventXferComplete:
		return "xfer-complete"
	case EventBusError:
		return "bus-error"
	default:
		return fmt.Sprintf("unknown event (%d)", uint8(e))
	}
}
