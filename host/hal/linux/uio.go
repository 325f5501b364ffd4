//go:build linux

package linux

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/pkg"
)

// Options selects and lays out the UIO device.
type Options struct {
	// Name matches /sys/class/uio/uioN/name. Empty selects the
	// lowest-numbered device.
	Name string

	// RegisterMap and DMAMap are the UIO map indices of the register block
	// and the DMA region. Set DMAMap to [NoDMAMap] when the controller has
	// no DMA-reachable memory exported.
	RegisterMap int
	DMAMap      int

	// SysfsRoot and DevRoot override [SysfsUIOPath] and [DevPath].
	SysfsRoot string
	DevRoot   string
}

// DefaultOptions returns options for a device named name with the register
// block in map 0 and DMA memory in map 1.
func DefaultOptions(name string) Options {
	return Options{
		Name:        name,
		RegisterMap: DefaultRegisterMap,
		DMAMap:      DefaultDMAMap,
		SysfsRoot:   SysfsUIOPath,
		DevRoot:     DevPath,
	}
}

// =============================================================================
// ControllerHAL Implementation
// =============================================================================

// HAL implements [hal.ControllerHAL] over a Linux UIO device node.
type HAL struct {
	opts Options

	mu      sync.Mutex
	dev     uioDevice
	fd      int
	maps    [][]byte // Whole mmap'd regions, for munmap
	regs    []byte
	arena   *dmaArena
	poller  *poller
	running bool

	irqCount atomic.Uint32
}

// New creates a UIO HAL. The device is opened by [HAL.Init].
func New(opts Options) *HAL {
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = SysfsUIOPath
	}
	if opts.DevRoot == "" {
		opts.DevRoot = DevPath
	}
	return &HAL{opts: opts, arena: newDMAArena(nil, 0)}
}

// Init locates the UIO device, maps its register block and DMA region and
// enables its interrupt.
func (h *HAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		// Re-initialization after resume keeps the mapping.
		return nil
	}

	dev, err := findUIO(h.opts.SysfsRoot, h.opts.Name)
	if err != nil {
		return err
	}
	if h.opts.RegisterMap >= len(dev.maps) {
		return fmt.Errorf("uio%d has no map%d: %w", dev.index, h.opts.RegisterMap, pkg.ErrNoDevice)
	}

	fd, err := unix.Open(dev.devPath(h.opts.DevRoot), unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open uio%d: %w: %w", dev.index, pkg.ErrIO, err)
	}

	var maps [][]byte
	fail := func(err error) error {
		unmapAll(maps)
		unix.Close(fd)
		return err
	}

	whole, regs, err := mapRegion(fd, h.opts.RegisterMap, dev.maps[h.opts.RegisterMap])
	if err != nil {
		return fail(err)
	}
	maps = append(maps, whole)

	arena := newDMAArena(nil, 0)
	if m := h.opts.DMAMap; m >= 0 && m < len(dev.maps) {
		whole, mem, err := mapRegion(fd, m, dev.maps[m])
		if err != nil {
			return fail(err)
		}
		maps = append(maps, whole)
		arena = newDMAArena(mem, uint32(dev.maps[m].addr))
	}

	p, err := newPoller(fd)
	if err != nil {
		return fail(fmt.Errorf("poller: %w: %w", pkg.ErrIO, err))
	}

	h.dev, h.fd, h.maps, h.regs, h.arena, h.poller = dev, fd, maps, regs, arena, p
	h.running = true

	if err := h.enableLocked(); err != nil {
		pkg.LogWarn(pkg.ComponentHAL, "uio interrupt enable failed", "error", err)
	}

	pkg.LogDebug(pkg.ComponentHAL, "uio device mapped",
		"device", dev.devPath(h.opts.DevRoot), "name", dev.name,
		"regs", len(regs), "dma", len(arena.mem))
	return nil
}

// mapRegion maps UIO map index with the geometry m. It returns the whole
// page-aligned mapping and the region inside it.
func mapRegion(fd, index int, m uioMap) (whole, region []byte, err error) {
	page := uint64(os.Getpagesize())
	length := (m.offset + m.size + page - 1) &^ (page - 1)

	whole, err = unix.Mmap(fd, int64(index)*int64(page), int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap map%d: %w: %w", index, pkg.ErrNoMemory, err)
	}
	return whole, whole[m.offset : m.offset+m.size], nil
}

func unmapAll(maps [][]byte) error {
	var errs []error
	for _, m := range maps {
		errs = append(errs, unix.Munmap(m))
	}
	return errors.Join(errs...)
}

// Close unmaps the device and closes its node. Blocked
// [HAL.WaitInterrupt] calls return [pkg.ErrClosed].
func (h *HAL) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false

	err := errors.Join(h.poller.close(), unmapAll(h.maps), unix.Close(h.fd))
	h.maps, h.regs = nil, nil
	h.arena = newDMAArena(nil, 0)

	pkg.LogDebug(pkg.ComponentHAL, "uio device closed", "interrupts", h.irqCount.Load())
	return err
}

// =============================================================================
// Register Access
// =============================================================================

// Read32 reads a register with a single 32-bit load. Offsets outside the
// register block read as zero.
func (h *HAL) Read32(offset uint32) uint32 {
	p := h.word(offset)
	if p == nil {
		return 0
	}
	return atomic.LoadUint32(p)
}

// Write32 writes a register with a single 32-bit store. Offsets outside the
// register block are ignored.
func (h *HAL) Write32(offset uint32, value uint32) {
	if p := h.word(offset); p != nil {
		atomic.StoreUint32(p, value)
	}
}

func (h *HAL) word(offset uint32) *uint32 {
	if offset%4 != 0 || int(offset)+4 > len(h.regs) {
		return nil
	}
	return (*uint32)(unsafe.Pointer(&h.regs[offset]))
}

// =============================================================================
// DMA
// =============================================================================

// DMAAddress translates a buffer obtained from [HAL.DMABuffer] to its bus
// address.
func (h *HAL) DMAAddress(buf []byte) (uint32, error) {
	return h.arena.address(buf)
}

// DMABuffer returns an n byte buffer inside the exported DMA region.
func (h *HAL) DMABuffer(n int) ([]byte, error) {
	return h.arena.alloc(n)
}

// ReleaseDMA makes the whole DMA region available again. Buffers handed out
// earlier must no longer be used.
func (h *HAL) ReleaseDMA() {
	h.arena.reset()
}

// =============================================================================
// Interrupts
// =============================================================================

// WaitInterrupt blocks until the UIO node reports an interrupt.
func (h *HAL) WaitInterrupt(ctx context.Context) error {
	h.mu.Lock()
	p, fd, running := h.poller, h.fd, h.running
	h.mu.Unlock()
	if !running {
		return pkg.ErrClosed
	}

	if err := p.wait(ctx); err != nil {
		return err
	}

	var buf [irqCountSize]byte
	if _, err := unix.Read(fd, buf[:]); err != nil {
		return fmt.Errorf("read interrupt count: %w: %w", pkg.ErrIO, err)
	}
	h.irqCount.Store(binary.NativeEndian.Uint32(buf[:]))
	return nil
}

// EnableInterrupt re-enables the interrupt line through the UIO irqcontrol
// write.
func (h *HAL) EnableInterrupt() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return pkg.ErrClosed
	}
	return h.enableLocked()
}

func (h *HAL) enableLocked() error {
	var buf [irqCountSize]byte
	binary.NativeEndian.PutUint32(buf[:], 1)
	if _, err := unix.Write(h.fd, buf[:]); err != nil {
		return fmt.Errorf("enable interrupt: %w: %w", pkg.ErrIO, err)
	}
	return nil
}

// InterruptCount returns the kernel interrupt count last observed.
func (h *HAL) InterruptCount() uint32 {
	return h.irqCount.Load()
}

var (
	_ hal.ControllerHAL = (*HAL)(nil)
	_ hal.DMAAllocator  = (*HAL)(nil)
)
