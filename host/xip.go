package host

import (
	"fmt"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// XIPConfig describes memory-mapped access to the bound device. Reads and
// writes inside the window returned by [Controller.MapWindow] are turned into
// bus transactions by the controller.
type XIPConfig struct {
	Enable     bool
	ReadCmd    uint16
	WriteCmd   uint16
	CmdLength  uint8
	AddrLength uint8
	ReadDummy  uint16 // Dummy cycles before read data
	WriteDummy uint16 // Dummy cycles before write data
}

// ConfigureXIP programs the map read and write controls for dev, which must
// be the bound device. Disabling clears both controls.
func (c *Controller) ConfigureXIP(dev *DeviceID, cfg XIPConfig) error {
	if dev == nil || dev != c.boundDevice() {
		return fmt.Errorf("device %s not bound: %w", dev, pkg.ErrStale)
	}
	if !c.caps.Mapping {
		return fmt.Errorf("controller lacks mapping mode: %w", pkg.ErrNotSupported)
	}

	bw := c.busWidth(dev)
	if cfg.Enable {
		if err := checkLength("command", cfg.CmdLength, MaxCmdLength); err != nil {
			return err
		}
		if err := checkLength("address", cfg.AddrLength, MaxAddrLength); err != nil {
			return err
		}
		for _, d := range []uint16{cfg.ReadDummy, cfg.WriteDummy} {
			if dummyBytes(d, bw) > MaxDummy {
				return fmt.Errorf("%d dummy cycles at %s: %w", d, bw, pkg.ErrNotSupported)
			}
		}
	}

	if err := c.xfer.hold(); err != nil {
		return err
	}
	defer c.xfer.unhold()

	c.writeXIP(cfg, bw)

	c.mu.Lock()
	c.xip = cfg
	c.mu.Unlock()

	pkg.LogInfo(pkg.ComponentDevice, "memory mapping configured",
		"device", dev, "enable", cfg.Enable, "base", fmt.Sprintf("%#08x", c.cfg.MapBase))
	return nil
}

func (c *Controller) writeXIP(cfg XIPConfig, bw BusWidth) {
	var rd, wr uint32
	if cfg.Enable {
		rd = mapControl(cfg, bw, cfg.ReadDummy) | reg.TMDataRead.Mask
		wr = mapControl(cfg, bw, cfg.WriteDummy)
	}

	// Mapped access requires the I/O cycle closed.
	c.regs.write(reg.TransferCtrl, reg.CtrlIOEnd)

	c.regs.write(reg.MapReadCtrl, rd)
	c.regs.write(reg.MapWriteCtrl, wr)
	if cfg.Enable {
		c.regs.write(reg.MapCmd, reg.MapCmdRead.Put(uint32(cfg.ReadCmd))|reg.MapCmdWrite.Put(uint32(cfg.WriteCmd)))
	}
}

// mapControl builds a map control value. The map controls share the
// Transfer Mode field layout.
func mapControl(cfg XIPConfig, bw BusWidth, dummy uint16) uint32 {
	return bw.Mode() |
		reg.TMCmdCount.Put(cmdCountField(cfg.CmdLength)) |
		reg.TMAddrCount.Put(uint32(cfg.AddrLength)) |
		reg.TMDummy.Put(uint32(dummyBytes(dummy, bw)))
}

// XIP returns the last memory-mapped configuration applied.
func (c *Controller) XIP() XIPConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.xip
}

// MapWindow returns the bus address and size of the memory-mapped window.
func (c *Controller) MapWindow() (base, size uint32) {
	return c.cfg.MapBase, c.cfg.MapSize
}
