// Package hal defines the Hardware Abstraction Layer interface for xSPI host
// controllers.
//
// The HAL is the boundary between the host package, which implements the
// transfer engine (phase sequencing, arbitration, DMA and PIO datapaths), and
// the platform that actually reaches the controller's registers.
//
// # Interface Overview
//
// The [ControllerHAL] interface covers three concerns:
//   - Register access: single 32-bit reads and writes at a byte offset
//   - DMA: translation of a buffer to a controller bus address
//   - Interrupts: blocking wait for the controller's IRQ line and re-arming
//
// The [PinController] interface is optional and applies per-peripheral pin
// profiles when the controller switches between chip-selects.
//
// # Implementations
//
//   - [github.com/ardnew/xspi/host/hal/sim]: an in-memory register model with
//     attached peripheral models, used by tests and the CLI
//   - [github.com/ardnew/xspi/host/hal/linux]: Linux UIO mapping of a real
//     controller
//   - [github.com/ardnew/xspi/host/hal/gpiomux]: a [PinController] driving
//     GPIO mux lines
//
// # Example
//
//	type MyHAL struct {
//	    regs []uint32
//	}
//
//	func (h *MyHAL) Read32(off uint32) uint32 { return h.regs[off/4] }
//	func (h *MyHAL) Write32(off, v uint32)    { h.regs[off/4] = v }
//
//	// ... implement remaining ControllerHAL methods
package hal
