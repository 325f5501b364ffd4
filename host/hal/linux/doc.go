// Package linux provides a controller HAL for Linux using the userspace I/O
// (UIO) framework.
//
// The controller is exported by a UIO driver such as uio_pdrv_genirq. The
// HAL finds it by name under /sys/class/uio, maps its register block and
// optional DMA region from /dev/uioN, and waits for interrupts by reading
// the node. It is pure Go with no cgo dependencies.
//
// # Requirements
//
// The user running the application needs read/write access to /dev/uioN.
// A device tree node binding the controller to the generic UIO driver
// looks like:
//
//	xspi@43c00000 {
//		compatible = "generic-uio";
//		reg = <0x43c00000 0x100>, <0x30000000 0x100000>;
//		interrupts = <0 29 4>;
//	};
//
// with uio_pdrv_genirq.of_id=generic-uio on the kernel command line.
//
// # Maps
//
// Map 0 holds the registers and map 1, when present, is memory the
// controller can reach by DMA. Buffers passed to DMA transfers must come
// from [HAL.DMABuffer]. Register accesses are single aligned 32-bit loads
// and stores.
//
// # Interrupts
//
// [HAL.WaitInterrupt] blocks in epoll on the device node together with an
// eventfd used for cancellation. [HAL.EnableInterrupt] writes to the node
// to unmask the line after each interrupt.
package linux
