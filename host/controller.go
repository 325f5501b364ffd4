package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

//go:generate mockgen -destination=mock_pins_test.go -package=host github.com/ardnew/xspi/host/hal PinController

// Capabilities is the decoded Capabilities register.
type Capabilities struct {
	ChipSelects int
	LUNs        int
	DMAMaster   bool
	DMASlave    bool
	Mapping     bool
}

func decodeCapabilities(v uint32) Capabilities {
	return Capabilities{
		ChipSelects: int(reg.CapChipSelects.Get(v)),
		LUNs:        int(reg.CapLUNs.Get(v)),
		DMAMaster:   reg.CapDMAMaster.Get(v) != 0,
		DMASlave:    reg.CapDMASlave.Get(v) != 0,
		Mapping:     reg.CapMapping.Get(v) != 0,
	}
}

// Controller drives one xSPI host controller shared by the peripherals of
// its configuration table.
type Controller struct {
	hal  hal.ControllerHAL
	pins hal.PinController
	cfg  Config
	regs registers

	// Transfer arbitration
	irq     completion
	isrMu   sync.Mutex // serializes interrupt status servicing
	xfer    *transferContext
	cfgLock *semaphore.Weighted

	// Device binding, guarded by mu
	mu         sync.Mutex
	bound      *DeviceID
	programmed *DeviceID // device whose configuration is in the registers
	devCfg     DeviceConfig
	bus        BusWidth
	busOwner   *DeviceID
	xip        XIPConfig

	caps    Capabilities
	version uint32

	pmMu      sync.Mutex
	suspended bool

	serving atomic.Bool
}

// New creates a controller over h. pins may be nil when peripherals share
// one pin profile. Call [Controller.Init] before use.
func New(h hal.ControllerHAL, pins hal.PinController, cfg Config) (*Controller, error) {
	if h == nil {
		return nil, fmt.Errorf("nil HAL: %w", pkg.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		hal:  h,
		pins: pins,
		cfg:  cfg,
		regs: registers{
			hal:      h,
			attempts: cfg.PollAttempts,
			interval: cfg.PollInterval,
		},
		cfgLock: semaphore.NewWeighted(1),
	}
	c.xfer = newTransferContext(&c.irq)
	return c, nil
}

// Init brings up the controller: it initializes the HAL, reads the
// capabilities and programs the static register state.
func (c *Controller) Init(ctx context.Context) error {
	if err := c.hal.Init(ctx); err != nil {
		return fmt.Errorf("hal init: %w", err)
	}

	c.version = c.regs.read(reg.HostVersion)
	c.caps = decodeCapabilities(c.regs.read(reg.Capabilities))

	if len(c.cfg.Peripherals) > c.caps.ChipSelects {
		return fmt.Errorf("%d peripherals, %d chip-selects: %w",
			len(c.cfg.Peripherals), c.caps.ChipSelects, pkg.ErrNotSupported)
	}

	c.setup()

	pkg.LogInfo(pkg.ComponentController, "controller initialized",
		"version", fmt.Sprintf("%#08x", c.version),
		"chipSelects", c.caps.ChipSelects,
		"dma", c.caps.DMAMaster,
		"mapping", c.caps.Mapping)
	return nil
}

// setup writes the register state that does not depend on a device.
func (c *Controller) setup() {
	c.regs.write(reg.BaseMapAddr, c.cfg.MapBase)
	c.regs.write(reg.TopMapAddr, c.cfg.MapBase+c.cfg.MapSize)

	c.selectPort(c.cfg.Peripherals[0])
	c.regs.updateField(reg.HCSIOShifter, 3)

	div, err := c.divider(c.cfg.MaxFrequency)
	if err != nil {
		div = maxClockDivider
	}
	c.regs.write(reg.DeviceCtrl,
		reg.DCDeviceType.Put(reg.DeviceTypeSPI)|reg.DCClockSel.Put(div/2-1))

	c.regs.update(reg.ClockCtrl, reg.CCRxShiftA.Mask|reg.CCRxShiftB.Mask,
		reg.CCRxShiftA.Put(uint32(c.cfg.Delay.RxSampleShiftA))|
			reg.CCRxShiftB.Put(uint32(c.cfg.Delay.RxSampleShiftB)))

	c.regs.write(reg.IntStatus, reg.IntAll)
	c.regs.write(reg.ErrIntStatus, reg.ErrAll)
	c.regs.write(reg.IntStatusEn, reg.IntAll)
	c.regs.write(reg.ErrIntStatusEn, reg.ErrAll)
	c.regs.write(reg.IntSignalEn, reg.IntAll)
	c.regs.write(reg.ErrIntSignalEn, reg.ErrAll)

	c.regs.write(reg.SampleAdjust, c.cfg.Delay.SampleAdjust)
	c.regs.write(reg.SIOInputDelay1, c.cfg.Delay.InputDelay[0])
	c.regs.write(reg.SIOInputDelay2, c.cfg.Delay.InputDelay[1])
	c.regs.write(reg.SIOOutputDelay1, c.cfg.Delay.OutputDelay[0])
	c.regs.write(reg.SIOOutputDelay2, c.cfg.Delay.OutputDelay[1])
}

// Close releases the HAL.
func (c *Controller) Close() error {
	pkg.LogInfo(pkg.ComponentController, "controller closed")
	return c.hal.Close()
}

// Capabilities returns the capabilities read by [Controller.Init].
func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

// Version returns the host version register read by [Controller.Init].
func (c *Controller) Version() uint32 {
	return c.version
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Bound returns the device currently bound to the controller, or nil.
func (c *Controller) Bound() *DeviceID {
	return c.boundDevice()
}

// ReadRegister returns the raw value of a register, for diagnostics.
func (c *Controller) ReadRegister(off reg.Offset) uint32 {
	return c.regs.read(off)
}
