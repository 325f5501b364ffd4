package linux

// =============================================================================
// System Paths
// =============================================================================

// SysfsUIOPath is the sysfs class directory listing UIO devices.
const SysfsUIOPath = "/sys/class/uio"

// DevPath is the directory holding the /dev/uioN nodes.
const DevPath = "/dev"

// =============================================================================
// Map Layout
// =============================================================================

// Default UIO map indices. The device tree node lists the register block
// first and the DMA-reachable memory region second.
const (
	DefaultRegisterMap = 0
	DefaultDMAMap      = 1
)

// NoDMAMap disables the DMA region.
const NoDMAMap = -1

// dmaAlign is the alignment of buffers handed out by the DMA arena.
const dmaAlign = 16

// =============================================================================
// Polling Constants
// =============================================================================

// MaxEpollEvents is the maximum events to retrieve per epoll_wait call.
const MaxEpollEvents = 4

// irqCountSize is the size of the interrupt count read from and the enable
// word written to a UIO node.
const irqCountSize = 4
