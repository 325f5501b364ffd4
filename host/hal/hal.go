package hal

import (
	"context"
)

// WordSize is the width of the controller data ports in bytes.
const WordSize = 4

// PackWord copies up to [WordSize] bytes of b into fill, least significant
// byte first. The first byte of b is the first byte shifted onto the bus.
// Byte lanes not covered by b keep their value from fill.
func PackWord(fill uint32, b []byte) uint32 {
	w := fill
	for i := 0; i < len(b) && i < WordSize; i++ {
		shift := uint(i) * 8
		w = w&^(0xFF<<shift) | uint32(b[i])<<shift
	}
	return w
}

// UnpackWord copies the low bytes of w into b, least significant byte first.
// Returns the number of bytes copied (at most [WordSize]).
func UnpackWord(w uint32, b []byte) int {
	n := len(b)
	if n > WordSize {
		n = WordSize
	}
	for i := 0; i < n; i++ {
		b[i] = byte(w >> (uint(i) * 8))
	}
	return n
}

// ControllerHAL defines the Hardware Abstraction Layer interface for an xSPI
// host controller.
//
// The HAL exposes the controller's register block, its interrupt line and
// the bus address translation needed for DMA. All protocol sequencing is
// done by the host package on top of these primitives.
//
// Read32 and Write32 must perform exactly one 32-bit access each; the
// controller has registers with read and write side effects.
type ControllerHAL interface {
	// Initialization and Lifecycle

	// Init maps the register block and prepares the interrupt line.
	// The context can be used to cancel initialization.
	Init(ctx context.Context) error

	// Close releases all resources associated with the HAL.
	// After Close returns, the HAL should not be used.
	Close() error

	// Register Access

	// Read32 reads the 32-bit register at the given byte offset.
	Read32(offset uint32) uint32

	// Write32 writes the 32-bit register at the given byte offset.
	Write32(offset uint32, value uint32)

	// DMA

	// DMAAddress returns the bus address the controller must use to reach
	// buf. Returns an error wrapping pkg.ErrNoMemory if buf lies outside the
	// memory the controller can address.
	DMAAddress(buf []byte) (uint32, error)

	// Interrupts

	// WaitInterrupt blocks until the controller raises its interrupt line or
	// the context is cancelled.
	WaitInterrupt(ctx context.Context) error

	// EnableInterrupt re-arms the interrupt line after it has been serviced.
	EnableInterrupt() error
}

// PinController applies the electrical pin profile (mux selection, drive
// strength) associated with a peripheral.
type PinController interface {
	// Apply selects the pin profile for the peripheral at the given index
	// of the controller's peripheral table.
	Apply(index int) error
}

// DMAAllocator is implemented by HALs that can only reach part of memory
// with DMA. Buffers passed to DMA transfers on such a HAL must come from
// DMABuffer.
type DMAAllocator interface {
	// DMABuffer returns an n byte buffer the controller can address.
	DMABuffer(n int) ([]byte, error)
}
