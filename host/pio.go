package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/xspi/host/reg"
)

// pioTransceive runs every packet of xfer through the FIFO.
func (c *Controller) pioTransceive(ctx context.Context, dev *DeviceID, xfer *Transfer, bw BusWidth,
	cb Callback, cbctx *CallbackContext,
) error {
	release, reconfigure, err := c.xfer.lock(ctx, dev, xfer, cbctx, true)
	if err != nil {
		return err
	}
	released := false
	defer func() {
		if !released {
			release()
		}
	}()

	if err := c.settleAsync(ctx, xfer.Timeout); err != nil {
		return err
	}
	if reconfigure {
		c.preparePhases(xfer, bw)
	}

	for i := range xfer.Packets {
		if err := c.pioPacket(xfer, &xfer.Packets[i], bw); err != nil {
			return fmt.Errorf("packet %d: %w", i, err)
		}
	}

	if xfer.Async {
		release()
		released = true
		ev := Event{Type: EventXferComplete, Device: dev, PacketIndex: len(xfer.Packets) - 1}
		if cbctx != nil {
			cbctx.arm(ev)
		}
		deliver(cb, cbctx, ev)
	}
	return nil
}

// preparePhases programs the Transfer Mode phase counts of xfer.
func (c *Controller) preparePhases(xfer *Transfer, bw BusWidth) {
	v := bw.Mode() |
		reg.TMCmdCount.Put(cmdCountField(xfer.CmdLength)) |
		reg.TMAddrCount.Put(uint32(xfer.AddrLength))
	c.regs.update(reg.TransferMode, modeMask|reg.TMCmdCount.Mask|reg.TMAddrCount.Mask, v)
}

// packetMode programs the per-packet Transfer Mode bits: direction, dummy
// count and DMA enable. Chip-select is always released by the hardware at
// the end of a DMA transfer.
func (c *Controller) packetMode(xfer *Transfer, p *Packet, bw BusWidth, dma bool) {
	v := reg.TMDummy.Put(uint32(dummyBytes(xfer.dummy(p.Dir), bw)))
	if p.Dir == DirRX {
		v |= reg.TMDataRead.Mask
	}
	if dma {
		v |= reg.TMDMAEnable.Mask
	}
	mask := reg.TMDMAEnable.Mask | reg.TMDataRead.Mask | reg.TMDummy.Mask | reg.TMKeepCS.Mask
	c.regs.update(reg.TransferMode, mask, v)
}

func (c *Controller) pioPacket(xfer *Transfer, p *Packet, bw BusWidth) error {
	c.packetMode(xfer, p, bw, false)

	if err := c.csStart(); err != nil {
		return err
	}
	if err := c.commandPhases(xfer, p, bw); err != nil {
		return errors.Join(err, c.csEnd())
	}
	if err := c.dataPhase(p, bw); err != nil {
		return errors.Join(err, c.csEnd())
	}
	return c.csEnd()
}
