package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/platinasystems/gpio"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/xspi/host"
	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/hal/gpiomux"
	"github.com/ardnew/xspi/pkg"
)

// Default peripheral settings.
const (
	DefaultDeviceFrequency = 25_000_000
	DefaultCmdLength       = 1
	DefaultAddrLength      = 3
)

// Device is the configuration of one peripheral as written in a config
// file.
type Device struct {
	Frequency  uint32 `yaml:"frequency"`
	IOMode     string `yaml:"io_mode"`
	DataRate   string `yaml:"data_rate"`
	CmdLength  uint8  `yaml:"cmd_length"`
	AddrLength uint8  `yaml:"addr_length"`
	DQS        bool   `yaml:"dqs"`
	CENum      uint8  `yaml:"ce_num"`
}

// DefaultDevice returns a single-line SDR device at [DefaultDeviceFrequency].
func DefaultDevice() Device {
	return Device{
		Frequency:  DefaultDeviceFrequency,
		IOMode:     "single",
		DataRate:   "sdr",
		CmdLength:  DefaultCmdLength,
		AddrLength: DefaultAddrLength,
	}
}

// UnmarshalYAML decodes a device entry on top of [DefaultDevice], so keys
// left out of the entry keep their defaults. Unknown keys are rejected.
func (d *Device) UnmarshalYAML(n *yaml.Node) error {
	var buf bytes.Buffer
	if err := yaml.NewEncoder(&buf).Encode(n); err != nil {
		return err
	}

	type plain Device
	p := plain(DefaultDevice())
	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*d = Device(p)
	return nil
}

// DeviceConfig converts d to the controller's device configuration.
func (d Device) DeviceConfig() (host.DeviceConfig, error) {
	mode, err := host.ParseIOMode(d.IOMode)
	if err != nil {
		return host.DeviceConfig{}, fmt.Errorf("%w: %w", err, pkg.ErrInvalidParameter)
	}
	rate, err := host.ParseDataRate(d.DataRate)
	if err != nil {
		return host.DeviceConfig{}, fmt.Errorf("%w: %w", err, pkg.ErrInvalidParameter)
	}
	return host.DeviceConfig{
		Frequency:  d.Frequency,
		IOMode:     mode,
		DataRate:   rate,
		CmdLength:  d.CmdLength,
		AddrLength: d.AddrLength,
		Endian:     host.EndianLittle,
		DQS:        d.DQS,
		CENum:      d.CENum,
	}, nil
}

// File is a complete configuration document.
type File struct {
	UIO        string            `yaml:"uio"` // UIO device name for the Linux backend
	Controller host.Config       `yaml:"controller"`
	Devices    []Device          `yaml:"devices"` // Indexed like Controller.Peripherals
	Pins       []gpiomux.Profile `yaml:"pins"`    // Optional, indexed like Controller.Peripherals
}

// Default returns the controller defaults with one default device.
func Default() File {
	return File{
		Controller: host.DefaultConfig(),
		Devices:    []Device{DefaultDevice()},
	}
}

// Validate checks the controller configuration and that every peripheral
// has a usable device entry.
func (f *File) Validate() error {
	if err := f.Controller.Validate(); err != nil {
		return err
	}
	if len(f.Devices) != len(f.Controller.Peripherals) {
		return fmt.Errorf("%d devices for %d peripherals: %w",
			len(f.Devices), len(f.Controller.Peripherals), pkg.ErrInvalidParameter)
	}
	for i, d := range f.Devices {
		if _, err := d.DeviceConfig(); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}
	if len(f.Pins) != 0 && len(f.Pins) != len(f.Controller.Peripherals) {
		return fmt.Errorf("%d pin profiles for %d peripherals: %w",
			len(f.Pins), len(f.Controller.Peripherals), pkg.ErrInvalidParameter)
	}
	return nil
}

// DeviceConfigs converts every device entry.
func (f *File) DeviceConfigs() ([]host.DeviceConfig, error) {
	cfgs := make([]host.DeviceConfig, len(f.Devices))
	for i, d := range f.Devices {
		cfg, err := d.DeviceConfig()
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		cfgs[i] = cfg
	}
	return cfgs, nil
}

// PinController returns a mux over pins applying f.Pins, or nil when f has
// no pin profiles.
func (f *File) PinController(pins gpio.PinMap) hal.PinController {
	if len(f.Pins) == 0 {
		return nil
	}
	return gpiomux.FromPinMap(pins, f.Pins)
}

// =============================================================================
// Loading
// =============================================================================

// Decode reads a YAML document from r into f. Keys absent from the document
// keep their current values.
func Decode(r io.Reader, f *File) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w: %w", pkg.ErrInvalidParameter, err)
	}
	return nil
}

// isDeviceTree reports whether b starts with the flattened device tree
// magic.
func isDeviceTree(b []byte) bool {
	return len(b) >= 4 && binary.BigEndian.Uint32(b) == fdtMagic
}

// Load builds a validated configuration from [Default], the optional file
// at path (YAML or device tree blob) and the environment, including any
// envFiles that exist.
func Load(path string, envFiles ...string) (File, error) {
	f := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config: %w", err)
		}
		if isDeviceTree(b) {
			err = FromDeviceTree(b, &f)
		} else {
			err = Decode(bytes.NewReader(b), &f)
		}
		if err != nil {
			return File{}, fmt.Errorf("%s: %w", path, err)
		}
		pkg.LogDebug(pkg.ComponentConfig, "configuration loaded",
			"path", path, "peripherals", len(f.Controller.Peripherals))
	}

	if err := ApplyEnv(&f, envFiles...); err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}
