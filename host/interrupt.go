package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// HandleInterrupt services the controller interrupt line. It acknowledges a
// transfer-complete status, wakes a synchronous waiter and, for an
// asynchronous transfer, resolves the callback context and runs the
// callback. It never blocks.
//
// While an asynchronous DMA transfer is in flight it also re-arms the engine
// after intermediate DMA interrupts and completes the transfer with
// [pkg.ErrIO] on an error interrupt. Otherwise those bits are left to the
// synchronous path that started the transfer.
func (c *Controller) HandleInterrupt() {
	c.service()
}

// service is HandleInterrupt reporting whether it re-armed the DMA engine.
// The owed callback runs after the status lock is dropped.
func (c *Controller) service() (rearmed bool) {
	c.isrMu.Lock()
	owed, rearmed, err := c.serviceLocked()
	c.isrMu.Unlock()

	if owed != nil {
		owed.run(err)
	}
	return rearmed
}

func (c *Controller) serviceLocked() (owed *delivery, rearmed bool, err error) {
	st := c.regs.read(reg.IntStatus)

	if c.irq.notifying() {
		if st&reg.IntError != 0 {
			es := c.regs.read(reg.ErrIntStatus)
			c.regs.write(reg.ErrIntStatus, es)
			c.regs.write(reg.IntStatus, reg.IntError)
			_, owed = c.irq.fire()
			return owed, false, fmt.Errorf("error status %#08x: %w", es, pkg.ErrIO)
		}
		if st&reg.IntDMA != 0 {
			c.regs.write(reg.IntStatus, reg.IntDMA)
			c.regs.write(reg.SDMAAddr, c.regs.read(reg.SDMAAddr))
			rearmed = true
		}
	}

	if st&reg.IntDMAComplete == 0 {
		return nil, rearmed, nil
	}
	c.regs.write(reg.IntStatus, reg.IntDMAComplete)

	fired, owed := c.irq.fire()
	pkg.LogDebug(pkg.ComponentIRQ, "transfer complete", "pending", fired, "async", owed != nil)
	return owed, rearmed, nil
}

// deliver resolves cbctx with the event status and runs cb. A nil cbctx
// is replaced by a fresh context for this event.
func deliver(cb Callback, cbctx *CallbackContext, ev Event) {
	if cbctx == nil {
		if cb == nil {
			return
		}
		cbctx = NewCallbackContext(nil)
		cbctx.arm(ev)
	}
	cbctx.resolve(ev.Status)
	if cb != nil {
		cb(cbctx)
	}
}

// Serve runs the interrupt loop until ctx ends or the HAL is closed. Only one
// Serve may run per controller.
func (c *Controller) Serve(ctx context.Context) error {
	if !c.serving.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer c.serving.Store(false)

	pkg.LogDebug(pkg.ComponentIRQ, "interrupt loop started")
	defer pkg.LogDebug(pkg.ComponentIRQ, "interrupt loop stopped")

	for {
		if err := c.hal.WaitInterrupt(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, pkg.ErrClosed) {
				return nil
			}
			return err
		}
		c.HandleInterrupt()
		if err := c.hal.EnableInterrupt(); err != nil {
			return err
		}
	}
}
