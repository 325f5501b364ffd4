package pkg

import "errors"

// Controller errors.
var (
	// ErrBusy indicates the controller or a lock could not be taken in time.
	ErrBusy = errors.New("resource busy")

	// ErrNoDevice indicates a chip-select identity absent from the peripheral table.
	ErrNoDevice = errors.New("device not present")

	// ErrNotSupported indicates an unsupported parameter, mode or length.
	ErrNotSupported = errors.New("not supported")

	// ErrStale indicates a device other than the one bound to the controller.
	ErrStale = errors.New("stale device")

	// ErrFault indicates a malformed transfer descriptor.
	ErrFault = errors.New("malformed transfer")

	// ErrIO indicates a hardware error status or an unrecoverable pending transfer.
	ErrIO = errors.New("I/O error")

	// ErrNoMemory indicates a DMA buffer outside the addressable window.
	ErrNoMemory = errors.New("insufficient memory")

	// ErrTimeout indicates a bounded register poll was exhausted.
	ErrTimeout = errors.New("poll timeout")

	// ErrAlreadyRunning indicates the interrupt loop is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrClosed indicates the HAL has been closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransferStatus represents the completion state of an asynchronous transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusPending TransferStatus = iota // Transfer is in flight
	TransferStatusSuccess                       // Transfer completed successfully
	TransferStatusError                         // Transfer failed
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusPending:
		return "pending"
	case TransferStatusSuccess:
		return "success"
	case TransferStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusPending:
		return ErrBusy
	default:
		return ErrIO
	}
}
