package host

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/xspi/pkg"
)

// Suspend quiesces the controller. It waits for the controller token and for
// any asynchronous transfer in flight, then keeps the token so transfers and
// configuration fail with [pkg.ErrBusy] until [Controller.Resume].
func (c *Controller) Suspend(ctx context.Context) error {
	c.pmMu.Lock()
	defer c.pmMu.Unlock()
	if c.suspended {
		return nil
	}

	if err := c.xfer.holdWait(ctx); err != nil {
		return err
	}

	if c.irq.isPending() {
		t := time.NewTimer(c.cfg.TimeoutCeiling)
		defer t.Stop()
		select {
		case <-c.irq.wait():
		case <-t.C:
			c.xfer.unhold()
			return fmt.Errorf("transfer in flight: %w", pkg.ErrBusy)
		case <-ctx.Done():
			c.xfer.unhold()
			return fmt.Errorf("transfer in flight: %w", pkg.ErrBusy)
		}
	}

	c.suspended = true
	pkg.LogInfo(pkg.ComponentController, "controller suspended")
	return nil
}

// Resume restores the register state lost across suspend, re-applies the
// bound device configuration and returns the token.
func (c *Controller) Resume(ctx context.Context) error {
	c.pmMu.Lock()
	defer c.pmMu.Unlock()
	if !c.suspended {
		return nil
	}

	if err := c.hal.Init(ctx); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	c.setup()

	c.mu.Lock()
	dev, cfg := c.bound, c.devCfg
	restore := dev != nil && c.programmed == dev
	c.programmed = nil
	xip := c.xip
	c.mu.Unlock()

	if restore {
		if err := c.program(dev, cfg); err != nil {
			return fmt.Errorf("resume device %s: %w", dev, err)
		}
		if xip.Enable {
			c.writeXIP(xip, c.busWidth(dev))
		}
	}

	c.suspended = false
	c.xfer.unhold()
	pkg.LogInfo(pkg.ComponentController, "controller resumed", "device", dev)
	return nil
}
