package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/xspi/host/hal/sim"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

func TestSuspend_BlocksUse(t *testing.T) {
	c, _, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, testDeviceConfig())
	ctx := context.Background()

	require.NoError(t, c.Suspend(ctx))
	require.NoError(t, c.Suspend(ctx), "already suspended")

	xfer, _ := readID(dev, ModePIO)
	assert.ErrorIs(t, c.Transceive(ctx, dev, xfer), pkg.ErrBusy)
	assert.ErrorIs(t, c.Configure(ctx, dev, ConfigFrequency, DeviceConfig{Frequency: 10_000_000}), pkg.ErrBusy)
	assert.ErrorIs(t, c.RegisterCallback(dev, EventXferComplete, nil, nil), pkg.ErrBusy)
	assert.ErrorIs(t, c.GetChannelStatus(0), pkg.ErrBusy)

	require.NoError(t, c.Resume(ctx))
	require.NoError(t, c.Resume(ctx), "already resumed")

	xfer, id := readID(dev, ModePIO)
	require.NoError(t, c.Transceive(ctx, dev, xfer))
	assert.Equal(t, sim.DefaultID, id)
}

func TestResume_RestoresRegisters(t *testing.T) {
	c, h, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, DeviceConfig{
		Frequency:  25_000_000,
		IOMode:     IOModeQuad144,
		DataRate:   RateSSD,
		CmdLength:  1,
		AddrLength: 4,
	})
	require.NoError(t, c.ConfigureXIP(dev, quadReadXIP()))

	want := map[reg.Offset]uint32{}
	for _, off := range []reg.Offset{
		reg.HostCtrl, reg.DeviceCtrl, reg.TransferMode, reg.ClockCtrl,
		reg.MapCmd, reg.MapReadCtrl, reg.MapWriteCtrl, reg.BaseMapAddr, reg.TopMapAddr,
	} {
		want[off] = h.Peek(off)
	}

	ctx := context.Background()
	require.NoError(t, c.Suspend(ctx))

	// Power loss resets the register block.
	require.NoError(t, h.Init(ctx))
	require.Zero(t, h.Peek(reg.DeviceCtrl))

	require.NoError(t, c.Resume(ctx))
	for off, v := range want {
		assert.Equal(t, v, h.Peek(off), "%s", off)
	}
	assert.Same(t, dev, c.Bound())
}

func TestSuspend_WaitsForAsyncTransfer(t *testing.T) {
	c, _, _ := newTestController(t, sim.Options{}, func(cfg *Config) {
		cfg.TimeoutCeiling = 10 * time.Millisecond
	})
	dev := bindDevice(t, c, 0, testDeviceConfig())

	cc := NewCallbackContext(nil)
	startAsyncDMA(t, c, dev, 32, nil, cc)

	err := c.Suspend(context.Background())
	assert.ErrorIs(t, err, pkg.ErrBusy)
	assert.False(t, c.xfer.inProgress(), "token returned on failure")

	go func() {
		time.Sleep(2 * time.Millisecond)
		c.HandleInterrupt()
	}()
	require.NoError(t, c.Suspend(context.Background()))
	assert.NoError(t, cc.Err())
	require.NoError(t, c.Resume(context.Background()))
}
