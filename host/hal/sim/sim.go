package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// Default model parameters.
const (
	DefaultChipSelects = 2
	DefaultLUNs        = 1
	DefaultVersion     = 0x00010203
	DefaultDMABase     = 0x80000000
	DefaultDMAWindow   = 1 << 20
	dmaAlign           = 16
)

// Options configures the register model.
type Options struct {
	ChipSelects int    // Chip-select lines reported in Capabilities
	LUNs        int    // LUNs reported in Capabilities
	Version     uint32 // Host version register value
	NoDMA       bool   // Clear the DMA master capability
	NoMapping   bool   // Clear the mapping-mode capability
	DMABase     uint32 // First bus address handed out by DMAAddress
	DMAWindow   uint32 // Bytes of bus address space available for DMA
	DMAChunk    int    // Bytes per DMA burst before an intermediate interrupt (0 = whole transfer)
}

// Access records one register write.
type Access struct {
	Offset reg.Offset
	Value  uint32
}

// String formats the access as "REG <- 0xVALUE".
func (a Access) String() string {
	return fmt.Sprintf("%s <- %#08x", a.Offset, a.Value)
}

// Stats counts observable bus events.
type Stats struct {
	Reads        int // Register reads
	Writes       int // Register writes
	CSAsserts    int // Chip-select assertions
	CSDeasserts  int // Chip-select de-assertions
	TXWords      int // Words written to the TX ports
	DMATransfers int // Completed DMA transfers
	Interrupts   int // Interrupts raised
}

type region struct {
	base uint32
	buf  []byte
}

type dmaState struct {
	active bool
	addr   uint32
	left   uint32
	read   bool
}

// HAL is an in-memory model of the controller register block. It implements
// [hal.ControllerHAL].
type HAL struct {
	opts Options

	mu      sync.Mutex
	regs    [reg.Size / 4]uint32
	periphs map[int]Peripheral
	active  Peripheral
	io      bool
	cs      bool
	rx      []uint32
	dma     dmaState
	regions []region
	next    uint32

	setBits   map[reg.Offset]uint32
	clearBits map[reg.Offset]uint32

	stats  Stats
	writes []Access

	irq    chan struct{}
	done   chan struct{}
	closed bool
}

// New creates a register model. Zero option fields take their defaults.
func New(opts Options) *HAL {
	if opts.ChipSelects <= 0 {
		opts.ChipSelects = DefaultChipSelects
	}
	if opts.LUNs <= 0 {
		opts.LUNs = DefaultLUNs
	}
	if opts.Version == 0 {
		opts.Version = DefaultVersion
	}
	if opts.DMABase == 0 {
		opts.DMABase = DefaultDMABase
	}
	if opts.DMAWindow == 0 {
		opts.DMAWindow = DefaultDMAWindow
	}
	h := &HAL{
		opts:      opts,
		periphs:   make(map[int]Peripheral),
		setBits:   make(map[reg.Offset]uint32),
		clearBits: make(map[reg.Offset]uint32),
		irq:       make(chan struct{}, 1),
		done:      make(chan struct{}),
		next:      opts.DMABase,
	}
	h.reset()
	return h
}

// Attach connects a peripheral to the given port select value.
func (h *HAL) Attach(port int, p Peripheral) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.periphs[port] = p
}

func (h *HAL) reset() {
	h.regs = [reg.Size / 4]uint32{}
	caps := reg.CapChipSelects.Put(uint32(h.opts.ChipSelects)) |
		reg.CapLUNs.Put(uint32(h.opts.LUNs)) |
		reg.CapDMASlave.Put(1)
	if !h.opts.NoDMA {
		caps |= reg.CapDMAMaster.Put(1)
	}
	if !h.opts.NoMapping {
		caps |= reg.CapMapping.Put(1)
	}
	h.regs[reg.Capabilities/4] = caps
	h.regs[reg.HostVersion/4] = h.opts.Version
	h.rx = h.rx[:0]
	h.io, h.cs = false, false
	h.dma = dmaState{}
}

// =============================================================================
// hal.ControllerHAL
// =============================================================================

// Init resets the register block to its power-on state.
func (h *HAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return pkg.ErrClosed
	}
	h.reset()
	pkg.LogDebug(pkg.ComponentHAL, "sim controller reset",
		"chipSelects", h.opts.ChipSelects, "dma", !h.opts.NoDMA)
	return nil
}

// Close stops interrupt delivery. Pending waiters return [pkg.ErrClosed].
func (h *HAL) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// Read32 reads a register, applying read side effects (RX FIFO pop).
func (h *HAL) Read32(offset uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	off := reg.Offset(offset)
	h.stats.Reads++

	var v uint32
	switch off {
	case reg.PresentState:
		v = reg.PresTxEmpty | reg.PresTxNotFull | reg.PresRxNotFull
		if len(h.rx) > 0 {
			v |= reg.PresRxNotEmpty
		}
	case reg.RXData:
		v = 0xFFFFFFFF
		if len(h.rx) > 0 {
			v = h.rx[0]
			h.rx = h.rx[1:]
		}
	default:
		if off < reg.Size {
			v = h.regs[off/4]
		}
	}
	return (v | h.setBits[off]) &^ h.clearBits[off]
}

// Write32 writes a register, applying write side effects.
func (h *HAL) Write32(offset uint32, value uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	off := reg.Offset(offset)
	h.stats.Writes++
	h.writes = append(h.writes, Access{Offset: off, Value: value})

	if n, ok := reg.TXDataBytes(off); ok {
		h.shift(n, value)
		return
	}

	switch off {
	case reg.IntStatus, reg.ErrIntStatus:
		h.regs[off/4] &^= value
	case reg.TransferCtrl:
		h.control(value)
	case reg.SDMAAddr:
		h.regs[off/4] = value
		h.startDMA(value)
	case reg.Capabilities, reg.HostVersion, reg.PresentState, reg.RXData:
		// read-only
	default:
		if off < reg.Size {
			h.regs[off/4] = value
		}
	}
}

// DMAAddress assigns buf a bus address inside the DMA window. The same
// buffer always maps to the same address.
func (h *HAL) DMAAddress(buf []byte) (uint32, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("empty DMA buffer: %w", pkg.ErrNoMemory)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.regions {
		if len(r.buf) == len(buf) && &r.buf[0] == &buf[0] {
			return r.base, nil
		}
	}

	end := uint64(h.opts.DMABase) + uint64(h.opts.DMAWindow)
	if uint64(h.next)+uint64(len(buf)) > end {
		return 0, fmt.Errorf("%d byte DMA buffer exceeds window: %w", len(buf), pkg.ErrNoMemory)
	}

	base := h.next
	h.regions = append(h.regions, region{base: base, buf: buf})
	h.next += (uint32(len(buf)) + dmaAlign - 1) &^ (dmaAlign - 1)
	return base, nil
}

// DMABuffer allocates an n byte buffer and maps it into the DMA window.
func (h *HAL) DMABuffer(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := h.DMAAddress(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReleaseDMA forgets every DMA mapping and rewinds the window.
func (h *HAL) ReleaseDMA() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regions = nil
	h.next = h.opts.DMABase
}

// WaitInterrupt blocks until the model raises its interrupt line.
func (h *HAL) WaitInterrupt(ctx context.Context) error {
	select {
	case <-h.irq:
		return nil
	case <-h.done:
		return pkg.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnableInterrupt is a no-op; the model line is edge triggered.
func (h *HAL) EnableInterrupt() error {
	return nil
}

// =============================================================================
// Bus Model
// =============================================================================

func (h *HAL) frame() Frame {
	mode := h.regs[reg.TransferMode/4]
	return Frame{
		CmdBytes:   int(reg.TMCmdCount.Get(mode)) + 1,
		AddrBytes:  int(reg.TMAddrCount.Get(mode)),
		DummyBytes: int(reg.TMDummy.Get(mode)),
	}
}

func (h *HAL) control(v uint32) {
	if v&reg.CtrlIOStart != 0 {
		h.io = true
		h.rx = h.rx[:0]
	}
	if v&reg.CtrlDeviceActive != 0 && h.io && !h.cs {
		h.cs = true
		h.stats.CSAsserts++
		port := int(reg.HCPort.Get(h.regs[reg.HostCtrl/4]))
		h.active = h.periphs[port]
		if h.active != nil {
			h.active.Select(h.frame())
		}
	}
	if v&reg.CtrlDeviceDisable != 0 {
		h.deselect()
	}
	if v&reg.CtrlIOEnd != 0 {
		h.io = false
	}
}

func (h *HAL) deselect() {
	if !h.cs {
		return
	}
	h.cs = false
	h.stats.CSDeasserts++
	if h.active != nil {
		h.active.Deselect()
		h.active = nil
	}
}

// exchange shifts one byte out to the selected peripheral and returns the
// byte shifted in. An idle bus reads as 0xFF.
func (h *HAL) exchange(out byte) byte {
	if !h.cs || h.active == nil {
		return 0xFF
	}
	return h.active.Exchange(out)
}

func (h *HAL) shift(n int, word uint32) {
	h.stats.TXWords++
	in := uint32(0xFFFFFFFF)
	for i := 0; i < n; i++ {
		s := uint(i) * 8
		b := h.exchange(byte(word >> s))
		in = in&^(0xFF<<s) | uint32(b)<<s
	}
	h.rx = append(h.rx, in)
}

func (h *HAL) startDMA(addr uint32) {
	if h.dma.active {
		// Re-arm after an intermediate interrupt.
		h.dma.addr = addr
		h.runDMA()
		return
	}

	mode := h.regs[reg.TransferMode/4]
	if reg.TMDMAEnable.Get(mode) == 0 || !h.cs {
		return
	}

	count := h.regs[reg.SDMACount/4]
	if _, _, ok := h.lookup(addr, count); !ok {
		h.regs[reg.ErrIntStatus/4] |= reg.ErrADMA
		h.regs[reg.IntStatus/4] |= reg.IntError
		h.raise()
		return
	}

	h.dma = dmaState{
		active: true,
		addr:   addr,
		left:   count,
		read:   reg.TMDataRead.Get(mode) != 0,
	}
	h.runDMA()
}

func (h *HAL) lookup(addr, count uint32) ([]byte, int, bool) {
	for _, r := range h.regions {
		end := uint64(r.base) + uint64(len(r.buf))
		if addr >= r.base && uint64(addr)+uint64(count) <= end {
			return r.buf, int(addr - r.base), true
		}
	}
	return nil, 0, false
}

func (h *HAL) runDMA() {
	n := h.dma.left
	if h.opts.DMAChunk > 0 && uint32(h.opts.DMAChunk) < n {
		n = uint32(h.opts.DMAChunk)
	}

	buf, ofs, ok := h.lookup(h.dma.addr, n)
	if !ok {
		h.dma = dmaState{}
		h.regs[reg.ErrIntStatus/4] |= reg.ErrADMA
		h.regs[reg.IntStatus/4] |= reg.IntError
		h.raise()
		return
	}

	for i := 0; i < int(n); i++ {
		if h.dma.read {
			buf[ofs+i] = h.exchange(0xFF)
		} else {
			h.exchange(buf[ofs+i])
		}
	}
	h.dma.addr += n
	h.dma.left -= n
	h.regs[reg.SDMAAddr/4] = h.dma.addr

	if h.dma.left > 0 {
		h.regs[reg.IntStatus/4] |= reg.IntDMA
		h.raise()
		return
	}

	h.dma = dmaState{}
	h.stats.DMATransfers++
	h.regs[reg.IntStatus/4] |= reg.IntDMAComplete
	if reg.TMKeepCS.Get(h.regs[reg.TransferMode/4]) == 0 {
		h.deselect()
		h.io = false
	}
	h.raise()
}

// raise signals the interrupt line if any pending status bit is enabled for
// signalling.
func (h *HAL) raise() {
	if h.regs[reg.IntStatus/4]&h.regs[reg.IntSignalEn/4] == 0 {
		return
	}
	h.stats.Interrupts++
	select {
	case h.irq <- struct{}{}:
	default:
	}
}

// =============================================================================
// Inspection and Fault Injection
// =============================================================================

// Peek returns a register value without read side effects.
func (h *HAL) Peek(off reg.Offset) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.regs[off/4]
}

// Stats returns a snapshot of the event counters.
func (h *HAL) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Writes returns a copy of the register write log.
func (h *HAL) Writes() []Access {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Access(nil), h.writes...)
}

// WritesTo returns the values written to the given register, in order.
func (h *HAL) WritesTo(off reg.Offset) []uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []uint32
	for _, a := range h.writes {
		if a.Offset == off {
			out = append(out, a.Value)
		}
	}
	return out
}

// ResetStats clears the counters and the write log.
func (h *HAL) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = Stats{}
	h.writes = nil
}

// Asserted reports whether chip-select is currently asserted.
func (h *HAL) Asserted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cs
}

// InterruptPending reports whether an interrupt is waiting to be consumed.
func (h *HAL) InterruptPending() bool {
	return len(h.irq) > 0
}

// Stick forces bits to read as set in the given register, modelling stuck
// hardware. Stick(off, 0) removes the fault.
func (h *HAL) Stick(off reg.Offset, bits uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setBits[off] = bits
}

// Mask forces bits to read as clear in the given register. Mask(off, 0)
// removes the fault.
func (h *HAL) Mask(off reg.Offset, bits uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearBits[off] = bits
}

var (
	_ hal.ControllerHAL = (*HAL)(nil)
	_ hal.DMAAllocator  = (*HAL)(nil)
)
