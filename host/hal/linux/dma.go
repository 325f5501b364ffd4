package linux

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ardnew/xspi/pkg"
)

// dmaArena hands out buffers from a memory region the controller can reach
// and translates them to bus addresses. Buffers are never freed
// individually; reset rewinds the whole arena.
type dmaArena struct {
	mu   sync.Mutex
	mem  []byte
	bus  uint32 // Bus address of mem[0]
	next int
}

func newDMAArena(mem []byte, bus uint32) *dmaArena {
	return &dmaArena{mem: mem, bus: bus}
}

// alloc returns an n byte buffer aligned to dmaAlign.
func (a *dmaArena) alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dma buffer of %d bytes: %w", n, pkg.ErrInvalidParameter)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	off := (a.next + dmaAlign - 1) &^ (dmaAlign - 1)
	if off+n > len(a.mem) {
		return nil, fmt.Errorf("dma buffer of %d bytes, %d free: %w",
			n, max(len(a.mem)-off, 0), pkg.ErrNoMemory)
	}
	a.next = off + n
	return a.mem[off : off+n : off+n], nil
}

// address returns the bus address of buf, which must lie entirely inside
// the arena.
func (a *dmaArena) address(buf []byte) (uint32, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("empty dma buffer: %w", pkg.ErrNoMemory)
	}
	if len(a.mem) == 0 {
		return 0, fmt.Errorf("no dma region: %w", pkg.ErrNoMemory)
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.mem)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if p < base || p+uintptr(len(buf)) > base+uintptr(len(a.mem)) {
		return 0, fmt.Errorf("buffer outside dma region: %w", pkg.ErrNoMemory)
	}
	return a.bus + uint32(p-base), nil
}

// reset makes the whole arena available again.
func (a *dmaArena) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = 0
}
