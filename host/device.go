package host

import (
	"context"
	"fmt"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// DeviceID identifies a logical peripheral. Devices are compared by pointer;
// callers create one DeviceID per peripheral and reuse it.
type DeviceID struct {
	CE    ChipSelect // Chip-select routing
	Index int        // Index into [Config.Peripherals]
}

// NewDeviceID returns the DeviceID for entry index of the peripheral table.
func NewDeviceID(cfg Config, index int) (*DeviceID, error) {
	if index < 0 || index >= len(cfg.Peripherals) {
		return nil, fmt.Errorf("peripheral %d: %w", index, pkg.ErrNoDevice)
	}
	return &DeviceID{CE: cfg.Peripherals[index], Index: index}, nil
}

// String formats the device as "index@ch/lun/port".
func (d *DeviceID) String() string {
	if d == nil {
		return "<none>"
	}
	return fmt.Sprintf("%d@%s", d.Index, d.CE)
}

// DeviceConfig holds the electrical and timing parameters of a peripheral.
type DeviceConfig struct {
	Frequency  uint32   `yaml:"frequency"`
	IOMode     IOMode   `yaml:"io_mode"`
	DataRate   DataRate `yaml:"data_rate"`
	CmdLength  uint8    `yaml:"cmd_length"`
	AddrLength uint8    `yaml:"addr_length"`
	Endian     Endian   `yaml:"endian"`
	DQS        bool     `yaml:"dqs"`
	CENum      uint8    `yaml:"ce_num"`
}

// deviceSetup is the validated register image of a DeviceConfig.
type deviceSetup struct {
	bus     BusWidth
	divider uint32
}

// Configure applies cfg to dev, binding dev to the controller.
//
// mask selects the parameters to apply. [ConfigAll] programs the whole
// configuration, switching pin profiles and port selection when dev is not
// the device last programmed. Any other mask adjusts the bound device only
// and accepts only frequency, IO mode, data rate, CE number and phase length
// bits. [ConfigNone] on a single-peripheral controller binds dev without
// touching hardware.
//
// Binding a device other than the bound one takes the configuration lock,
// which stays held until [Controller.GetChannelStatus] releases it.
func (c *Controller) Configure(ctx context.Context, dev *DeviceID, mask ConfigMask, cfg DeviceConfig) (err error) {
	if dev == nil {
		return fmt.Errorf("nil device: %w", pkg.ErrNoDevice)
	}

	bound := c.boundDevice()
	if dev != bound {
		if err := c.lockConfig(ctx); err != nil {
			return err
		}
		defer func() {
			if err != nil {
				c.cfgLock.Release(1)
			}
		}()
		if err := c.verifyDevice(dev); err != nil {
			return err
		}
	}

	if err := c.xfer.hold(); err != nil {
		return err
	}
	defer c.xfer.unhold()

	switch {
	case mask == ConfigNone && !c.cfg.MultiPeripheral:
		c.bind(dev)
		pkg.LogDebug(pkg.ComponentDevice, "device bound", "device", dev)
		return nil
	case mask != ConfigAll:
		if mask&^configIncremental != 0 || dev != bound {
			return fmt.Errorf("mask %#04x for device %s: %w", uint32(mask), dev, pkg.ErrNotSupported)
		}
		return c.configureIncremental(dev, mask, cfg)
	}

	c.mu.Lock()
	same := c.programmed == dev && c.devCfg == cfg
	c.mu.Unlock()
	if same {
		bw, err := DeriveBusWidth(cfg.IOMode, cfg.DataRate)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.bus, c.busOwner = bw, dev
		c.mu.Unlock()
		c.bind(dev)
		pkg.LogDebug(pkg.ComponentDevice, "device rebound", "device", dev)
		return nil
	}

	return c.program(dev, cfg)
}

// program validates cfg and writes it to the controller for dev.
func (c *Controller) program(dev *DeviceID, cfg DeviceConfig) error {
	if cfg.Endian != EndianLittle {
		return fmt.Errorf("big endian: %w", pkg.ErrNotSupported)
	}
	if cfg.DQS && !c.cfg.DQSSupport {
		return fmt.Errorf("dqs: %w", pkg.ErrNotSupported)
	}
	setup, err := c.plan(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switching := c.programmed != dev
	c.mu.Unlock()
	if switching {
		if err := c.selectDevice(dev); err != nil {
			return err
		}
	}

	c.regs.update(reg.TransferMode, modeMask, setup.bus.Mode())
	c.regs.updateField(reg.TMCmdCount, cmdCountField(cfg.CmdLength))
	c.regs.updateField(reg.TMAddrCount, uint32(cfg.AddrLength))
	c.regs.updateField(reg.DCClockSel, setup.divider/2-1)
	c.regs.updateField(reg.DCDQS, b2u(cfg.DQS))

	c.mu.Lock()
	c.devCfg = cfg
	c.programmed = dev
	c.bus, c.busOwner = setup.bus, dev
	c.mu.Unlock()
	c.bind(dev)

	pkg.LogInfo(pkg.ComponentDevice, "device configured",
		"device", dev, "bus", setup.bus, "freq", cfg.Frequency, "div", setup.divider)
	return nil
}

func (c *Controller) configureIncremental(dev *DeviceID, mask ConfigMask, cfg DeviceConfig) error {
	c.mu.Lock()
	next := c.devCfg
	c.mu.Unlock()

	if mask&ConfigFrequency != 0 {
		next.Frequency = cfg.Frequency
	}
	if mask&ConfigIOMode != 0 {
		next.IOMode = cfg.IOMode
	}
	if mask&ConfigDataRate != 0 {
		next.DataRate = cfg.DataRate
	}
	if mask&ConfigCENum != 0 {
		next.CENum = cfg.CENum
	}
	if mask&ConfigCmdLength != 0 {
		next.CmdLength = cfg.CmdLength
	}
	if mask&ConfigAddrLength != 0 {
		next.AddrLength = cfg.AddrLength
	}

	var (
		div uint32
		bw  BusWidth
		err error
	)
	if mask&ConfigFrequency != 0 {
		if div, err = c.divider(next.Frequency); err != nil {
			return err
		}
	}
	busBits := ConfigIOMode | ConfigDataRate | ConfigCENum
	if mask&busBits != 0 {
		if bw, err = DeriveBusWidth(next.IOMode, next.DataRate); err != nil {
			return err
		}
	}
	if mask&ConfigCmdLength != 0 {
		if err := checkLength("command", next.CmdLength, MaxCmdLength); err != nil {
			return err
		}
	}
	if mask&ConfigAddrLength != 0 {
		if err := checkLength("address", next.AddrLength, MaxAddrLength); err != nil {
			return err
		}
	}

	if mask&ConfigFrequency != 0 {
		c.regs.updateField(reg.DCClockSel, div/2-1)
	}
	if mask&busBits != 0 {
		c.regs.update(reg.TransferMode, modeMask, bw.Mode())
		c.mu.Lock()
		c.bus, c.busOwner = bw, dev
		c.mu.Unlock()
	}
	if mask&ConfigCmdLength != 0 {
		c.regs.updateField(reg.TMCmdCount, cmdCountField(next.CmdLength))
	}
	if mask&ConfigAddrLength != 0 {
		c.regs.updateField(reg.TMAddrCount, uint32(next.AddrLength))
	}

	c.mu.Lock()
	c.devCfg = next
	c.mu.Unlock()

	pkg.LogDebug(pkg.ComponentDevice, "device adjusted", "device", dev, "mask", fmt.Sprintf("%#04x", uint32(mask)))
	return nil
}

// plan validates cfg and computes its register image.
func (c *Controller) plan(cfg DeviceConfig) (deviceSetup, error) {
	bw, err := DeriveBusWidth(cfg.IOMode, cfg.DataRate)
	if err != nil {
		return deviceSetup{}, err
	}
	if err := checkLength("command", cfg.CmdLength, MaxCmdLength); err != nil {
		return deviceSetup{}, err
	}
	if err := checkLength("address", cfg.AddrLength, MaxAddrLength); err != nil {
		return deviceSetup{}, err
	}
	div, err := c.divider(cfg.Frequency)
	if err != nil {
		return deviceSetup{}, err
	}
	return deviceSetup{bus: bw, divider: div}, nil
}

// divider returns the even clock divider that brings the input clock at or
// below freq.
func (c *Controller) divider(freq uint32) (uint32, error) {
	if freq == 0 || freq > c.cfg.MaxFrequency {
		return 0, fmt.Errorf("frequency %d Hz: %w", freq, pkg.ErrNotSupported)
	}
	div := (c.cfg.ClockHz + freq - 1) / freq
	if div%2 != 0 {
		div++
	}
	if div < minClockDivider {
		div = minClockDivider
	}
	if div > maxClockDivider {
		return 0, fmt.Errorf("frequency %d Hz needs divider %d: %w", freq, div, pkg.ErrNotSupported)
	}
	return div, nil
}

func checkLength(phase string, n, max uint8) error {
	if n == 0 || n > max {
		return fmt.Errorf("%s length %d: %w", phase, n, pkg.ErrNotSupported)
	}
	return nil
}

// cmdCountField encodes a command length; the field stores length-1.
func cmdCountField(n uint8) uint32 {
	if n >= 2 {
		return 1
	}
	return 0
}

// selectDevice applies the pin profile of dev and routes the controller to
// its chip-select.
func (c *Controller) selectDevice(dev *DeviceID) error {
	if c.pins != nil {
		if err := c.pins.Apply(dev.Index); err != nil {
			return fmt.Errorf("pin profile %d: %w: %w", dev.Index, pkg.ErrIO, err)
		}
	}
	c.selectPort(dev.CE)
	return nil
}

func (c *Controller) selectPort(cs ChipSelect) {
	v := reg.HCChannel.Put(uint32(cs.Channel)) |
		reg.HCLUN.Put(uint32(cs.LUN)) |
		reg.HCPort.Put(uint32(cs.Port))
	c.regs.update(reg.HostCtrl, reg.HCChannel.Mask|reg.HCLUN.Mask|reg.HCPort.Mask, v)
}

// verifyDevice checks dev against the peripheral table.
func (c *Controller) verifyDevice(dev *DeviceID) error {
	if dev.Index < 0 || dev.Index >= len(c.cfg.Peripherals) || c.cfg.Peripherals[dev.Index] != dev.CE {
		return fmt.Errorf("chip-select %s at index %d: %w", dev.CE, dev.Index, pkg.ErrNoDevice)
	}
	return nil
}

func (c *Controller) lockConfig(ctx context.Context) error {
	if c.cfgLock.TryAcquire(1) {
		return nil
	}
	if c.cfg.ConfigLockTimeout <= 0 {
		return fmt.Errorf("configuration lock: %w", pkg.ErrBusy)
	}
	wctx, cancel := context.WithTimeout(ctx, c.cfg.ConfigLockTimeout)
	defer cancel()
	if err := c.cfgLock.Acquire(wctx, 1); err != nil {
		return fmt.Errorf("configuration lock after %v: %w", c.cfg.ConfigLockTimeout, pkg.ErrBusy)
	}
	return nil
}

func (c *Controller) bind(dev *DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = dev
}

func (c *Controller) boundDevice() *DeviceID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// busWidth returns the cached bus width if dev derived it, or 1-1-1 SDR.
func (c *Controller) busWidth(dev *DeviceID) BusWidth {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busOwner != dev {
		return singleBusWidth
	}
	return c.bus
}

// GetChannelStatus reports whether the controller is idle. An idle
// controller unbinds its device and releases the configuration lock;
// a transfer in progress returns [pkg.ErrBusy].
func (c *Controller) GetChannelStatus(channel uint8) error {
	if c.xfer.inProgress() {
		return fmt.Errorf("channel %d: %w", channel, pkg.ErrBusy)
	}

	c.mu.Lock()
	dev := c.bound
	c.bound = nil
	c.mu.Unlock()

	if dev != nil {
		c.cfgLock.Release(1)
		pkg.LogDebug(pkg.ComponentDevice, "device released", "device", dev, "channel", channel)
	}
	return nil
}
