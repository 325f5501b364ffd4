package host

import (
	"fmt"
	"time"

	"github.com/ardnew/xspi/pkg"
)

// ChipSelect identifies the controller routing of one peripheral.
type ChipSelect struct {
	Channel uint8 `yaml:"channel"` // Channel select (0 = A, 1 = B)
	LUN     uint8 `yaml:"lun"`     // Logical unit select
	Port    uint8 `yaml:"port"`    // Port (chip-select line) select
}

// String formats the chip-select as "ch/lun/port".
func (cs ChipSelect) String() string {
	return fmt.Sprintf("%d/%d/%d", cs.Channel, cs.LUN, cs.Port)
}

// DelayLines holds the sampling and I/O delay line settings. The values are
// written verbatim; no calibration is performed.
type DelayLines struct {
	RxSampleShiftA uint8     `yaml:"rx_sample_shift_a"`
	RxSampleShiftB uint8     `yaml:"rx_sample_shift_b"`
	SampleAdjust   uint32    `yaml:"sample_adjust"`
	InputDelay     [2]uint32 `yaml:"input_delay"`
	OutputDelay    [2]uint32 `yaml:"output_delay"`
}

// Config holds the static controller configuration.
type Config struct {
	BaseAddress     uint64       `yaml:"base_address"`     // Register block physical address
	IRQ             int          `yaml:"irq"`              // Interrupt number
	Peripherals     []ChipSelect `yaml:"peripherals"`      // Peripheral table, indexed by device index
	MultiPeripheral bool         `yaml:"multi_peripheral"` // Software multi-peripheral topology
	DQSSupport      bool         `yaml:"dqs_support"`      // Controller wired for DQS strobe

	ClockHz      uint32 `yaml:"clock_hz"`      // Controller input clock
	MaxFrequency uint32 `yaml:"max_frequency"` // Fastest bus clock allowed

	MapBase uint32 `yaml:"map_base"` // Memory-mapped window bus address
	MapSize uint32 `yaml:"map_size"` // Memory-mapped window size

	PollAttempts      int           `yaml:"poll_attempts"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	TimeoutCeiling    time.Duration `yaml:"timeout_ceiling"`     // Largest transfer timeout accepted
	ConfigLockTimeout time.Duration `yaml:"config_lock_timeout"` // Device binding lock timeout

	Delay DelayLines `yaml:"delay"`
}

// DefaultConfig returns a configuration for a single peripheral on port 0.
func DefaultConfig() Config {
	return Config{
		Peripherals:       []ChipSelect{{}},
		ClockHz:           DefaultClockHz,
		MaxFrequency:      DefaultMaxFrequency,
		MapBase:           DefaultMapBase,
		MapSize:           DefaultMapSize,
		PollAttempts:      DefaultPollAttempts,
		PollInterval:      DefaultPollInterval,
		TimeoutCeiling:    DefaultTimeoutCeiling,
		ConfigLockTimeout: DefaultConfigLockTimeout,
		Delay: DelayLines{
			RxSampleShiftA: 1,
			RxSampleShiftB: 1,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Peripherals) == 0 {
		return fmt.Errorf("empty peripheral table: %w", pkg.ErrInvalidParameter)
	}
	seen := make(map[ChipSelect]int, len(c.Peripherals))
	for i, cs := range c.Peripherals {
		if j, ok := seen[cs]; ok {
			return fmt.Errorf("peripherals %d and %d share chip-select %s: %w",
				j, i, cs, pkg.ErrInvalidParameter)
		}
		seen[cs] = i
	}
	if c.ClockHz == 0 || c.MaxFrequency == 0 {
		return fmt.Errorf("clock_hz and max_frequency must be set: %w", pkg.ErrInvalidParameter)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("poll_attempts %d: %w", c.PollAttempts, pkg.ErrInvalidParameter)
	}
	if c.TimeoutCeiling < 0 || c.ConfigLockTimeout < 0 || c.PollInterval < 0 {
		return fmt.Errorf("negative duration: %w", pkg.ErrInvalidParameter)
	}
	return nil
}
