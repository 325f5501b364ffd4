package host

import (
	"fmt"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// BusWidth is the line count and edge usage of each bus phase.
type BusWidth struct {
	CmdLines  int
	AddrLines int
	DataLines int

	CmdDDR  bool
	AddrDDR bool
	DataDDR bool
}

// singleBusWidth is the 1-1-1 SDR layout used until a device is configured.
var singleBusWidth = BusWidth{CmdLines: 1, AddrLines: 1, DataLines: 1}

// DeriveBusWidth maps an IO mode and data rate to a [BusWidth].
// Command and address DDR are not supported by the controller.
func DeriveBusWidth(mode IOMode, rate DataRate) (BusWidth, error) {
	bw := BusWidth{CmdLines: 1}

	switch mode {
	case IOModeSingle:
		bw.AddrLines, bw.DataLines = 1, 1
	case IOModeDual, IOModeDual112:
		bw.AddrLines, bw.DataLines = 1, 2
	case IOModeDual122:
		bw.AddrLines, bw.DataLines = 2, 2
	case IOModeQuad, IOModeQuad144:
		bw.AddrLines, bw.DataLines = 4, 4
	case IOModeQuad114:
		bw.AddrLines, bw.DataLines = 1, 4
	case IOModeOctal, IOModeOctal188:
		bw.AddrLines, bw.DataLines = 8, 8
	case IOModeOctal118:
		bw.AddrLines, bw.DataLines = 1, 8
	default:
		return BusWidth{}, fmt.Errorf("io mode %d: %w", uint8(mode), pkg.ErrNotSupported)
	}

	switch rate {
	case RateSingle:
	case RateSSD:
		bw.DataDDR = true
	default:
		return BusWidth{}, fmt.Errorf("data rate %s: %w", rate, pkg.ErrNotSupported)
	}

	return bw, nil
}

// Mode returns the Transfer Mode bus width and DTR bits for bw.
func (bw BusWidth) Mode() uint32 {
	return reg.TMCmdBusWidth.Put(lineCode(bw.CmdLines)) |
		reg.TMAddrBusWidth.Put(lineCode(bw.AddrLines)) |
		reg.TMDataBusWidth.Put(lineCode(bw.DataLines)) |
		reg.TMCmdDTR.Put(b2u(bw.CmdDDR)) |
		reg.TMAddrDTR.Put(b2u(bw.AddrDDR)) |
		reg.TMDataDTR.Put(b2u(bw.DataDDR))
}

// modeMask selects every bit [BusWidth.Mode] may set.
var modeMask = reg.TMCmdBusWidth.Mask | reg.TMAddrBusWidth.Mask | reg.TMDataBusWidth.Mask |
	reg.TMCmdDTR.Mask | reg.TMAddrDTR.Mask | reg.TMDataDTR.Mask

// octalDDR reports whether data is shifted on eight lines on both edges.
func (bw BusWidth) octalDDR() bool {
	return bw.DataLines == 8 && bw.DataDDR
}

// String formats the widths as "cmd-addr-data" with a "D" suffix on DDR phases.
func (bw BusWidth) String() string {
	phase := func(n int, ddr bool) string {
		if ddr {
			return fmt.Sprintf("%dD", n)
		}
		return fmt.Sprintf("%d", n)
	}
	return phase(bw.CmdLines, bw.CmdDDR) + "-" +
		phase(bw.AddrLines, bw.AddrDDR) + "-" +
		phase(bw.DataLines, bw.DataDDR)
}

func lineCode(lines int) uint32 {
	switch lines {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
