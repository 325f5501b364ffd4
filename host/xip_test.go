package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/xspi/host/hal/sim"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

func quadReadXIP() XIPConfig {
	return XIPConfig{
		Enable:     true,
		ReadCmd:    sim.CmdQuadIORead,
		WriteCmd:   sim.CmdOctalProgram,
		CmdLength:  1,
		AddrLength: 3,
		ReadDummy:  8,
	}
}

func TestConfigureXIP(t *testing.T) {
	c, h, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, testDeviceConfig())

	h.ResetStats()
	require.NoError(t, c.ConfigureXIP(dev, quadReadXIP()))

	assert.Equal(t, uint32(0x001200EB), h.Peek(reg.MapCmd))
	assert.Equal(t, uint32(0x002C0010), h.Peek(reg.MapReadCtrl), "3 address bytes, 1 dummy byte, read")
	assert.Equal(t, uint32(0x000C0000), h.Peek(reg.MapWriteCtrl))
	assert.Equal(t, []uint32{reg.CtrlIOEnd}, h.WritesTo(reg.TransferCtrl))
	assert.Equal(t, quadReadXIP(), c.XIP())
	assert.False(t, c.xfer.inProgress())
}

func TestConfigureXIP_FollowsBusWidth(t *testing.T) {
	c, h, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, DeviceConfig{
		Frequency:  DefaultMaxFrequency,
		IOMode:     IOModeQuad144,
		CmdLength:  1,
		AddrLength: 3,
	})

	cfg := quadReadXIP()
	cfg.ReadDummy = 6
	require.NoError(t, c.ConfigureXIP(dev, cfg))

	rd := h.Peek(reg.MapReadCtrl)
	assert.Equal(t, uint32(2), reg.TMAddrBusWidth.Get(rd))
	assert.Equal(t, uint32(2), reg.TMDataBusWidth.Get(rd))
	assert.Equal(t, uint32(3), reg.TMDummy.Get(rd), "6 cycles on 4 lines")
}

func TestConfigureXIP_Disable(t *testing.T) {
	c, h, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, testDeviceConfig())
	require.NoError(t, c.ConfigureXIP(dev, quadReadXIP()))

	require.NoError(t, c.ConfigureXIP(dev, XIPConfig{}))
	assert.Zero(t, h.Peek(reg.MapReadCtrl))
	assert.Zero(t, h.Peek(reg.MapWriteCtrl))
	assert.False(t, c.XIP().Enable)
}

func TestConfigureXIP_Rejects(t *testing.T) {
	c, h, _ := newTestController(t, sim.Options{})
	dev := bindDevice(t, c, 0, testDeviceConfig())

	tests := []struct {
		name   string
		mutate func(*XIPConfig)
	}{
		{"zero command length", func(x *XIPConfig) { x.CmdLength = 0 }},
		{"long address", func(x *XIPConfig) { x.AddrLength = 5 }},
		{"too many dummy cycles", func(x *XIPConfig) { x.WriteDummy = 8 * (MaxDummy + 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quadReadXIP()
			tt.mutate(&cfg)
			h.ResetStats()
			assert.ErrorIs(t, c.ConfigureXIP(dev, cfg), pkg.ErrNotSupported)
			assert.Zero(t, h.Stats().Writes)
		})
	}
}

func TestConfigureXIP_Preconditions(t *testing.T) {
	c, _, _ := newTestController(t, sim.Options{})
	dev, err := NewDeviceID(c.Config(), 0)
	require.NoError(t, err)
	assert.ErrorIs(t, c.ConfigureXIP(dev, quadReadXIP()), pkg.ErrStale)

	bindDevice(t, c, 0, testDeviceConfig())
	require.NoError(t, c.xfer.hold())
	assert.ErrorIs(t, c.ConfigureXIP(dev, quadReadXIP()), pkg.ErrBusy)
	c.xfer.unhold()

	nm, _, _ := newTestController(t, sim.Options{NoMapping: true})
	nmDev := bindDevice(t, nm, 0, testDeviceConfig())
	assert.ErrorIs(t, nm.ConfigureXIP(nmDev, quadReadXIP()), pkg.ErrNotSupported)
}
