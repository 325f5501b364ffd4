package reg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Field Fixtures
// =============================================================================

// Each fixture pins a field to its register, its literal mask, and the
// register value produced by writing the field's maximum value.
func TestFields_HexFixtures(t *testing.T) {
	tests := []struct {
		field Field
		reg   Offset
		mask  uint32
		shift uint8
	}{
		{HCPort, 0x00, 0x000000FF, 0},
		{HCLUN, 0x00, 0x00000700, 8},
		{HCChannel, 0x00, 0x00000800, 11},
		{HCSIOShifter, 0x00, 0x01800000, 23},
		{TMDMAEnable, 0x1C, 0x00000001, 0},
		{TMDataRead, 0x1C, 0x00000010, 4},
		{TMCmdBusWidth, 0x1C, 0x00000300, 8},
		{TMCmdDTR, 0x1C, 0x00000400, 10},
		{TMAddrBusWidth, 0x1C, 0x00001800, 11},
		{TMAddrDTR, 0x1C, 0x00002000, 13},
		{TMDataBusWidth, 0x1C, 0x0000C000, 14},
		{TMDataDTR, 0x1C, 0x00010000, 16},
		{TMCmdCount, 0x1C, 0x00020000, 17},
		{TMAddrCount, 0x1C, 0x001C0000, 18},
		{TMDummy, 0x1C, 0x07E00000, 21},
		{TMKeepCS, 0x1C, 0x40000000, 30},
		{CCPLLDivider, 0x4C, 0x0000FFFF, 0},
		{CCRxShiftA, 0x4C, 0x001F0000, 16},
		{CCRxShiftB, 0x4C, 0x03E00000, 21},
		{CapChipSelects, 0x58, 0x000001FF, 0},
		{CapLUNs, 0x58, 0x00001E00, 9},
		{CapDMAMaster, 0x58, 0x00800000, 23},
		{CapDMASlave, 0x58, 0x01000000, 24},
		{CapMapping, 0x58, 0x08000000, 27},
		{DCDQS, 0xC0, 0x00000020, 5},
		{DCBlockSize, 0xC0, 0x0007FF80, 7},
		{DCPageSize, 0xC0, 0x00380000, 19},
		{DCClockSel, 0xC0, 0x1E000000, 25},
		{DCDeviceType, 0xC0, 0xE0000000, 29},
		{MapCmdRead, 0xCC, 0x0000FFFF, 0},
		{MapCmdWrite, 0xCC, 0xFFFF0000, 16},
	}

	require.Len(t, tests, len(Fields), "every field needs a fixture")

	for _, tt := range tests {
		t.Run(tt.field.Name, func(t *testing.T) {
			assert.Equal(t, tt.reg, tt.field.Reg)
			assert.Equalf(t, tt.mask, tt.field.Mask, "mask = %#08x, want %#08x", tt.field.Mask, tt.mask)
			assert.Equal(t, tt.shift, tt.field.Shift)
			assert.Equal(t, tt.mask, tt.field.Put(0xFFFFFFFF))
		})
	}
}

func TestFields_NoOverlap(t *testing.T) {
	seen := map[Offset]uint32{}
	for _, f := range Fields {
		require.Zerof(t, seen[f.Reg]&f.Mask, "%s overlaps another field in %s", f.Name, f.Reg)
		seen[f.Reg] |= f.Mask
	}
}

// =============================================================================
// Accessors
// =============================================================================

func TestField_SetGet(t *testing.T) {
	// Octal data, quad address, single command, DTR data, 2-byte command,
	// 4-byte address, 20 dummy cycles.
	var mode uint32
	mode = TMCmdBusWidth.Set(mode, 0)
	mode = TMAddrBusWidth.Set(mode, 2)
	mode = TMDataBusWidth.Set(mode, 3)
	mode = TMDataDTR.Set(mode, 1)
	mode = TMCmdCount.Set(mode, 1)
	mode = TMAddrCount.Set(mode, 4)
	mode = TMDummy.Set(mode, 20)

	assert.Equal(t, uint32(0x0293D000), mode)
	assert.Equal(t, uint32(3), TMDataBusWidth.Get(mode))
	assert.Equal(t, uint32(4), TMAddrCount.Get(mode))
	assert.Equal(t, uint32(20), TMDummy.Get(mode))
}

func TestField_SetPreservesNeighbours(t *testing.T) {
	r := uint32(0xFFFFFFFF)
	r = TMAddrCount.Set(r, 0)
	assert.Equal(t, uint32(0xFFE3FFFF), r)
}

func TestField_PutTruncates(t *testing.T) {
	assert.Equal(t, uint32(0x07E00000), TMDummy.Put(0x7F))
	assert.Equal(t, uint32(0x00000000), TMCmdCount.Put(2))
}

func TestField_Width(t *testing.T) {
	assert.Equal(t, 6, TMDummy.Width())
	assert.Equal(t, 1, TMDMAEnable.Width())
	assert.Equal(t, 16, MapCmdWrite.Width())
}

// =============================================================================
// TX Port Encoding
// =============================================================================

func TestTXData(t *testing.T) {
	tests := []struct {
		n    int
		want Offset
	}{
		{1, 0x74},
		{2, 0x78},
		{3, 0x7C},
		{4, 0x70},
	}

	for _, tt := range tests {
		got := TXData(tt.n)
		assert.Equalf(t, tt.want, got, "TXData(%d)", tt.n)

		n, ok := TXDataBytes(got)
		require.True(t, ok)
		assert.Equal(t, tt.n, n)
	}

	_, ok := TXDataBytes(RXData)
	assert.False(t, ok)
	_, ok = TXDataBytes(TXData0 + 2)
	assert.False(t, ok)
}

func TestOffset_String(t *testing.T) {
	assert.Equal(t, "TFR_MODE", TransferMode.String())
	assert.Equal(t, "TXD3", TXData(3).String())
	assert.Equal(t, "0x30", Offset(0x30).String())
}

func TestNamed(t *testing.T) {
	named := Named()
	require.NotEmpty(t, named)
	assert.Equal(t, HostCtrl, named[0])
	assert.Equal(t, SIOOutputDelay2, named[len(named)-1])
	for i := 1; i < len(named); i++ {
		assert.Less(t, named[i-1], named[i])
	}
}
