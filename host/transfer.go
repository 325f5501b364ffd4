package host

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ardnew/xspi/pkg"
)

// Packet is one chip-select framed bus transaction.
type Packet struct {
	Dir  Direction
	Cmd  uint32 // Command opcode, shifted MSB first
	Addr uint32 // Address, shifted MSB first
	Data []byte // Data to send (DirTX) or buffer to fill (DirRX)
}

// Transfer describes a sequence of packets sharing phase lengths.
type Transfer struct {
	Mode  XferMode
	Async bool

	CmdLength  uint8  // Command bytes per packet (0 to skip)
	AddrLength uint8  // Address bytes per packet (0 to skip)
	TxDummy    uint16 // Dummy cycles before transmit data
	RxDummy    uint16 // Dummy cycles before receive data

	// Timeout bounds acquisition of the controller and, for synchronous DMA,
	// completion of each packet. Zero means try once without waiting.
	Timeout time.Duration

	Packets []Packet
}

func (x *Transfer) dummy(dir Direction) uint16 {
	if dir == DirRX {
		return x.RxDummy
	}
	return x.TxDummy
}

// samePhases reports whether x and y program identical phase lengths.
func (x *Transfer) samePhases(y *Transfer) bool {
	return x.CmdLength == y.CmdLength && x.AddrLength == y.AddrLength &&
		x.TxDummy == y.TxDummy && x.RxDummy == y.RxDummy
}

// Transceive runs xfer on dev, which must be the bound device.
//
// Synchronous transfers return after the last packet completes. Asynchronous
// transfers invoke the callback installed with [Controller.RegisterCallback]
// on completion; an asynchronous DMA transfer returns as soon as its last
// packet is started.
func (c *Controller) Transceive(ctx context.Context, dev *DeviceID, xfer *Transfer) error {
	if dev == nil || dev != c.boundDevice() {
		return fmt.Errorf("device %s not bound: %w", dev, pkg.ErrStale)
	}
	bw := c.busWidth(dev)
	if err := c.validate(xfer, bw); err != nil {
		return err
	}

	trace := xid.New().String()
	pkg.LogDebug(pkg.ComponentTransfer, "transfer submitted",
		"xfer", trace, "device", dev, "mode", xfer.Mode, "async", xfer.Async, "packets", len(xfer.Packets))

	var (
		cb    Callback
		cbctx *CallbackContext
	)
	if xfer.Async {
		cb, cbctx = c.xfer.registration()
	}

	var err error
	switch xfer.Mode {
	case ModePIO:
		err = c.pioTransceive(ctx, dev, xfer, bw, cb, cbctx)
	case ModeDMA:
		err = c.dmaTransceive(ctx, dev, xfer, bw, cb, cbctx)
	default:
		err = fmt.Errorf("transfer mode %s: %w", xfer.Mode, pkg.ErrIO)
	}

	if err != nil {
		pkg.LogWarn(pkg.ComponentTransfer, "transfer failed", "xfer", trace, "device", dev, "error", err)
		return err
	}
	pkg.LogDebug(pkg.ComponentTransfer, "transfer done", "xfer", trace)
	return nil
}

func (c *Controller) validate(xfer *Transfer, bw BusWidth) error {
	if xfer == nil || len(xfer.Packets) == 0 {
		return fmt.Errorf("no packets: %w", pkg.ErrFault)
	}
	if xfer.Timeout < 0 || xfer.Timeout > c.cfg.TimeoutCeiling {
		return fmt.Errorf("timeout %v exceeds %v: %w", xfer.Timeout, c.cfg.TimeoutCeiling, pkg.ErrFault)
	}
	if xfer.CmdLength > MaxCmdLength {
		return fmt.Errorf("command length %d: %w", xfer.CmdLength, pkg.ErrNotSupported)
	}
	if xfer.AddrLength > MaxAddrLength {
		return fmt.Errorf("address length %d: %w", xfer.AddrLength, pkg.ErrNotSupported)
	}
	for _, d := range []uint16{xfer.TxDummy, xfer.RxDummy} {
		if dummyBytes(d, bw) > MaxDummy {
			return fmt.Errorf("%d dummy cycles at %s: %w", d, bw, pkg.ErrNotSupported)
		}
	}
	return nil
}

// RegisterCallback installs cb for evt on the bound device. Later
// asynchronous transfers invoke cb with cbctx when they complete. A nil
// cbctx gives each completion a fresh context.
func (c *Controller) RegisterCallback(dev *DeviceID, evt EventType, cb Callback, cbctx *CallbackContext) error {
	if c.xfer.inProgress() {
		return fmt.Errorf("transfer in progress: %w", pkg.ErrBusy)
	}
	if dev == nil || dev != c.boundDevice() {
		return fmt.Errorf("device %s not bound: %w", dev, pkg.ErrStale)
	}
	if evt != EventXferComplete {
		return fmt.Errorf("event %s: %w", evt, pkg.ErrNotSupported)
	}
	c.xfer.register(cb, cbctx)
	pkg.LogDebug(pkg.ComponentTransfer, "callback registered", "device", dev, "event", evt)
	return nil
}
