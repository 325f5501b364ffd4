package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// dmaTransceive runs the command phases of each packet through the FIFO and
// hands the data phase to the DMA engine.
func (c *Controller) dmaTransceive(ctx context.Context, dev *DeviceID, xfer *Transfer, bw BusWidth,
	cb Callback, cbctx *CallbackContext,
) error {
	if !c.caps.DMAMaster {
		return fmt.Errorf("controller lacks DMA master: %w", pkg.ErrIO)
	}

	release, reconfigure, err := c.xfer.lock(ctx, dev, xfer, cbctx, true)
	if err != nil {
		return err
	}
	defer release()

	if err := c.settleAsync(ctx, xfer.Timeout); err != nil {
		return err
	}
	if reconfigure {
		c.preparePhases(xfer, bw)
	}

	last := len(xfer.Packets) - 1
	for i := range xfer.Packets {
		async := xfer.Async && i == last
		var owed *delivery
		if async {
			owed = &delivery{cb: cb, cbctx: cbctx, ev: Event{Type: EventXferComplete, Device: dev, PacketIndex: i}}
		}
		if err := c.dmaPacket(ctx, xfer, i, bw, owed); err != nil {
			return fmt.Errorf("packet %d: %w", i, err)
		}
	}
	return nil
}

// dmaPacket runs packet i. A non-nil owed makes it asynchronous: the packet
// returns once the engine is started and owed runs on completion.
func (c *Controller) dmaPacket(ctx context.Context, xfer *Transfer, i int, bw BusWidth, owed *delivery) error {
	p := &xfer.Packets[i]

	addr, err := c.hal.DMAAddress(p.Data)
	if err != nil {
		if errors.Is(err, pkg.ErrNoMemory) {
			return err
		}
		return fmt.Errorf("dma mapping: %w: %w", pkg.ErrIO, err)
	}

	// Stale status from an earlier transfer would end the wait early. Any
	// asynchronous transfer was settled before the token was used.
	c.regs.write(reg.IntStatus, reg.IntDMA|reg.IntDMAComplete|reg.IntError)
	c.regs.write(reg.ErrIntStatus, reg.ErrAll)

	c.packetMode(xfer, p, bw, true)

	if err := c.csStart(); err != nil {
		// csStart already ended the I/O cycle.
		c.regs.updateField(reg.TMDMAEnable, 0)
		return err
	}
	if err := c.commandPhases(xfer, p, bw); err != nil {
		return errors.Join(err, c.dmaStop())
	}

	c.irq.arm(owed)
	if owed != nil && owed.cbctx != nil {
		owed.cbctx.arm(owed.ev)
	}

	c.regs.write(reg.SDMACount, uint32(len(p.Data)))
	c.regs.write(reg.SDMAAddr, addr)

	if owed != nil {
		if st := c.regs.read(reg.ErrIntStatus); st != 0 {
			c.regs.write(reg.ErrIntStatus, st)
			c.irq.cancel()
			err := fmt.Errorf("error status %#08x: %w", st, pkg.ErrIO)
			if owed.cbctx != nil {
				owed.cbctx.resolve(err)
			}
			return errors.Join(err, c.dmaStop())
		}
		// The controller de-asserts chip-select and ends the I/O cycle when
		// the engine finishes. DMA enable stays set until the next
		// transfer's packetMode, since the interrupt handler must not write
		// Transfer Mode without the token.
		pkg.LogDebug(pkg.ComponentTransfer, "dma started", "device", owed.ev.Device, "packet", i, "bytes", len(p.Data))
		return nil
	}

	if err := c.waitDMA(ctx, xfer.Timeout); err != nil {
		return errors.Join(err, c.dmaStop())
	}
	return c.dmaStop()
}

// dmaStop disables the DMA engine and ends the I/O cycle.
func (c *Controller) dmaStop() error {
	c.regs.updateField(reg.TMDMAEnable, 0)
	return c.csEnd()
}

// completionTimeout bounds how long a started engine is waited on. The
// transfer timeout only bounds acquisition, so it is raised to the ceiling.
func (c *Controller) completionTimeout(timeout time.Duration) time.Duration {
	return max(timeout, c.cfg.TimeoutCeiling)
}

// waitDMA polls the interrupt status until the transfer completes, either
// observed here or fired by the interrupt handler. An iteration that re-armed
// the engine is always followed by one more status read, so a deadline that
// passes mid-transfer cannot abandon a running engine unseen.
func (c *Controller) waitDMA(ctx context.Context, timeout time.Duration) error {
	limit := c.completionTimeout(timeout)
	deadline := time.Now().Add(limit)
	done := c.irq.wait()
	grace := false

	for {
		st := c.regs.read(reg.IntStatus)

		if st&reg.IntError != 0 {
			es := c.regs.read(reg.ErrIntStatus)
			c.regs.write(reg.ErrIntStatus, es)
			c.regs.write(reg.IntStatus, reg.IntError)
			c.irq.cancel()
			return fmt.Errorf("error status %#08x: %w", es, pkg.ErrIO)
		}

		rearmed := false
		if st&reg.IntDMA != 0 {
			c.regs.write(reg.IntStatus, reg.IntDMA)
			c.regs.write(reg.SDMAAddr, c.regs.read(reg.SDMAAddr))
			rearmed = true
		}

		if st&reg.IntDMAComplete != 0 {
			c.regs.write(reg.IntStatus, reg.IntDMAComplete)
			c.irq.fire()
			return nil
		}

		select {
		case <-done:
			return nil
		default:
		}

		if ctx.Err() != nil || !time.Now().Before(deadline) {
			if ctx.Err() == nil && rearmed && !grace {
				grace = true
				continue
			}
			c.irq.cancel()
			return fmt.Errorf("dma incomplete after %v: %w", limit, pkg.ErrTimeout)
		}
		if c.regs.interval > 0 {
			time.Sleep(c.regs.interval)
		}
	}
}

// settleAsync waits out an asynchronous transfer still in flight and runs
// its callback before the caller reuses the status register and the shared
// completion. It services the status itself, so completion is delivered
// whether or not [Controller.Serve] is running. The caller holds the token.
func (c *Controller) settleAsync(ctx context.Context, timeout time.Duration) error {
	if !c.irq.notifying() {
		return nil
	}
	limit := c.completionTimeout(timeout)
	deadline := time.Now().Add(limit)
	grace := false

	for {
		rearmed := c.service()
		if !c.irq.notifying() {
			return nil
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			if ctx.Err() == nil && rearmed && !grace {
				grace = true
				continue
			}
			return fmt.Errorf("asynchronous transfer in flight after %v: %w", limit, pkg.ErrBusy)
		}
		if c.regs.interval > 0 {
			time.Sleep(c.regs.interval)
		}
	}
}
