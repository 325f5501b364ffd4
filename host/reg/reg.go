// Package reg describes the register block of the UEFC xSPI host
// controller: register offsets, typed bitfields and status flags.
//
// Fields are declared once as (offset, mask, shift) triples and accessed
// through [Field] methods, so no caller shifts or masks by hand:
//
//	mode := reg.TMDataBusWidth.Set(mode, 3)
//	lines := reg.TMDataBusWidth.Get(mode)
package reg

import "fmt"

// Offset is a byte offset from the controller register base.
type Offset uint32

// Register offsets.
const (
	HostCtrl        Offset = 0x00
	IntStatus       Offset = 0x04
	ErrIntStatus    Offset = 0x08
	IntStatusEn     Offset = 0x0C
	ErrIntStatusEn  Offset = 0x10
	IntSignalEn     Offset = 0x14
	ErrIntSignalEn  Offset = 0x18
	TransferMode    Offset = 0x1C
	TransferCtrl    Offset = 0x20
	PresentState    Offset = 0x24
	SDMACount       Offset = 0x28
	SDMAAddr        Offset = 0x2C
	BaseMapAddr     Offset = 0x38
	ClockCtrl       Offset = 0x4C
	Capabilities    Offset = 0x58
	HostVersion     Offset = 0x5C
	TXData0         Offset = 0x70
	RXData          Offset = 0x80
	DeviceCtrl      Offset = 0xC0
	MapReadCtrl     Offset = 0xC4
	MapWriteCtrl    Offset = 0xC8
	MapCmd          Offset = 0xCC
	TopMapAddr      Offset = 0xD0
	SampleAdjust    Offset = 0xEC
	SIOInputDelay1  Offset = 0xF0
	SIOInputDelay2  Offset = 0xF4
	SIOOutputDelay1 Offset = 0xF8
	SIOOutputDelay2 Offset = 0xFC

	// Size is the length of the register block in bytes.
	Size = 0x100
)

var offsetNames = map[Offset]string{
	HostCtrl:        "HC_CTRL",
	IntStatus:       "INT_STS",
	ErrIntStatus:    "ERR_INT_STS",
	IntStatusEn:     "INT_STS_EN",
	ErrIntStatusEn:  "ERR_INT_STS_EN",
	IntSignalEn:     "INT_STS_SIG_EN",
	ErrIntSignalEn:  "ERR_INT_STS_SIG_EN",
	TransferMode:    "TFR_MODE",
	TransferCtrl:    "TFR_CTRL",
	PresentState:    "PRES_STS",
	SDMACount:       "SDMA_CNT",
	SDMAAddr:        "SDMA_ADDR",
	BaseMapAddr:     "BASE_MAP_ADDR",
	ClockCtrl:       "CLK_CTRL",
	Capabilities:    "CAP_1",
	HostVersion:     "HC_VER",
	TXData0:         "TXD0",
	TXData0 + 4:     "TXD1",
	TXData0 + 8:     "TXD2",
	TXData0 + 12:    "TXD3",
	RXData:          "RXD",
	DeviceCtrl:      "DEV_CTRL",
	MapReadCtrl:     "MAP_RD_CTRL",
	MapWriteCtrl:    "MAP_WR_CTRL",
	MapCmd:          "MAP_CMD",
	TopMapAddr:      "TOP_MAP_ADDR",
	SampleAdjust:    "SAMPLE_ADJ",
	SIOInputDelay1:  "SIO_IDLY_1",
	SIOInputDelay2:  "SIO_IDLY_2",
	SIOOutputDelay1: "SIO_ODLY_1",
	SIOOutputDelay2: "SIO_ODLY_2",
}

// String returns the register mnemonic, or the hex offset if unnamed.
func (o Offset) String() string {
	if name, ok := offsetNames[o]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint32(o))
}

// Named returns all named register offsets in ascending order.
func Named() []Offset {
	out := make([]Offset, 0, len(offsetNames))
	for o := Offset(0); o < Size; o += 4 {
		if _, ok := offsetNames[o]; ok {
			out = append(out, o)
		}
	}
	return out
}

// TXData returns the TX port that shifts n bytes of the written word.
// The port offset encodes the byte count: TXD0 shifts 4 bytes, TXD1 one
// byte, TXD2 two bytes and TXD3 three bytes.
func TXData(n int) Offset {
	return TXData0 + Offset((n%4)*4)
}

// TXDataBytes reports how many bytes a write to the TX port at o shifts.
// It returns false if o is not a TX port.
func TXDataBytes(o Offset) (int, bool) {
	if o < TXData0 || o > TXData0+12 || o%4 != 0 {
		return 0, false
	}
	n := int(o-TXData0) / 4
	if n == 0 {
		n = 4
	}
	return n, true
}

// Field is a bitfield within a 32-bit register.
type Field struct {
	Reg   Offset
	Mask  uint32 // mask in register position
	Shift uint8
	Name  string
}

// Put returns v shifted into field position, truncated to the field width.
func (f Field) Put(v uint32) uint32 {
	return (v << f.Shift) & f.Mask
}

// Get extracts the field value from a register value.
func (f Field) Get(r uint32) uint32 {
	return (r & f.Mask) >> f.Shift
}

// Clear returns r with the field zeroed.
func (f Field) Clear(r uint32) uint32 {
	return r &^ f.Mask
}

// Set returns r with the field replaced by v.
func (f Field) Set(r, v uint32) uint32 {
	return f.Clear(r) | f.Put(v)
}

// Width returns the field width in bits.
func (f Field) Width() int {
	n := 0
	for m := f.Mask >> f.Shift; m != 0; m >>= 1 {
		n++
	}
	return n
}

func field(r Offset, width, shift uint8, name string) Field {
	return Field{
		Reg:   r,
		Mask:  (uint32(1)<<width - 1) << shift,
		Shift: shift,
		Name:  name,
	}
}

// Host Control fields.
var (
	HCPort       = field(HostCtrl, 8, 0, "PORT_SEL")
	HCLUN        = field(HostCtrl, 3, 8, "LUN_SEL")
	HCChannel    = field(HostCtrl, 1, 11, "CH_SEL")
	HCSIOShifter = field(HostCtrl, 2, 23, "SIO_SHIFTER")
)

// Transfer Mode fields. Map Read/Write Control share the same layout for
// the bus-width, DTR, count and dummy fields.
var (
	TMDMAEnable    = field(TransferMode, 1, 0, "DMA_EN")
	TMDataRead     = field(TransferMode, 1, 4, "DD_RD")
	TMCmdBusWidth  = field(TransferMode, 2, 8, "CMD_BUSW")
	TMCmdDTR       = field(TransferMode, 1, 10, "CMD_DTR")
	TMAddrBusWidth = field(TransferMode, 2, 11, "ADDR_BUSW")
	TMAddrDTR      = field(TransferMode, 1, 13, "ADDR_DTR")
	TMDataBusWidth = field(TransferMode, 2, 14, "DATA_BUSW")
	TMDataDTR      = field(TransferMode, 1, 16, "DATA_DTR")
	TMCmdCount     = field(TransferMode, 1, 17, "CMD_CNT")
	TMAddrCount    = field(TransferMode, 3, 18, "ADDR_CNT")
	TMDummy        = field(TransferMode, 6, 21, "DMY_CNT")
	TMKeepCS       = field(TransferMode, 1, 30, "DMA_KEEP_CSB")
)

// Clock Control fields.
var (
	CCPLLDivider = field(ClockCtrl, 16, 0, "PLL_DIV")
	CCRxShiftA   = field(ClockCtrl, 5, 16, "RX_SS_A")
	CCRxShiftB   = field(ClockCtrl, 5, 21, "RX_SS_B")
)

// Capabilities fields.
var (
	CapChipSelects = field(Capabilities, 9, 0, "CSB_NUM")
	CapLUNs        = field(Capabilities, 4, 9, "LUN_NUM")
	CapDMAMaster   = field(Capabilities, 1, 23, "DMA_MASTER")
	CapDMASlave    = field(Capabilities, 1, 24, "DMA_SLAVE")
	CapMapping     = field(Capabilities, 1, 27, "MAPPING_MODE")
)

// Device Control fields.
var (
	DCDQS        = field(DeviceCtrl, 1, 5, "DQS_EN")
	DCBlockSize  = field(DeviceCtrl, 12, 7, "BLK_SIZE")
	DCPageSize   = field(DeviceCtrl, 3, 19, "PAGE_SIZE")
	DCClockSel   = field(DeviceCtrl, 4, 25, "SCLK_SEL")
	DCDeviceType = field(DeviceCtrl, 3, 29, "TYPE")
)

// Map Command fields.
var (
	MapCmdRead  = field(MapCmd, 16, 0, "MAP_CMD_RD")
	MapCmdWrite = field(MapCmd, 16, 16, "MAP_CMD_WR")
)

// Fields lists every declared field.
var Fields = []Field{
	HCPort, HCLUN, HCChannel, HCSIOShifter,
	TMDMAEnable, TMDataRead, TMCmdBusWidth, TMCmdDTR, TMAddrBusWidth,
	TMAddrDTR, TMDataBusWidth, TMDataDTR, TMCmdCount, TMAddrCount,
	TMDummy, TMKeepCS,
	CCPLLDivider, CCRxShiftA, CCRxShiftB,
	CapChipSelects, CapLUNs, CapDMAMaster, CapDMASlave, CapMapping,
	DCDQS, DCBlockSize, DCPageSize, DCClockSel, DCDeviceType,
	MapCmdRead, MapCmdWrite,
}

// Device Control device types.
const (
	DeviceTypeSPI  uint32 = 0
	DeviceTypeNAND uint32 = 1
	DeviceTypeNOR  uint32 = 2
)

// Normal interrupt status bits (INT_STS, INT_STS_EN, INT_STS_SIG_EN).
const (
	IntDMA         uint32 = 1 << 6
	IntDMAComplete uint32 = 1 << 7
	IntError       uint32 = 1 << 15
	IntACReady     uint32 = 1 << 28

	IntAll = IntACReady | IntError | IntDMAComplete | IntDMA
)

// Error interrupt status bits (ERR_INT_STS and its enables).
const (
	ErrCRC      uint32 = 1 << 9
	ErrADMA     uint32 = 1 << 16
	ErrAXI      uint32 = 1 << 17
	ErrPreamble uint32 = 1 << 18
	ErrTimeout  uint32 = 1 << 19

	ErrAll = ErrTimeout | ErrPreamble | ErrAXI | ErrADMA | ErrCRC
)

// Transfer Control bits. All are self-clearing.
const (
	CtrlIOStart       uint32 = 1 << 0
	CtrlHostActive    uint32 = 1 << 1
	CtrlDeviceActive  uint32 = 1 << 2
	CtrlIOEnd         uint32 = 1 << 16
	CtrlDeviceDisable uint32 = 1 << 18
)

// Present State bits.
const (
	PresTxEmpty    uint32 = 1 << 16
	PresTxNotFull  uint32 = 1 << 17
	PresRxNotEmpty uint32 = 1 << 18
	PresRxNotFull  uint32 = 1 << 19
)
