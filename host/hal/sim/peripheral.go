package sim

// Frame describes the phase layout the controller programmed before
// asserting chip-select. Peripheral models use it to split the byte stream
// into command, address, dummy and data phases.
type Frame struct {
	CmdBytes   int // Command bytes (1 or 2)
	AddrBytes  int // Address bytes (0 to 7)
	DummyBytes int // Dummy bytes clocked before data
}

// Peripheral is a device attached behind one chip-select of the model.
//
// The model calls Select when chip-select is asserted, Exchange once per
// byte clocked on the bus (full duplex), and Deselect when chip-select is
// released. Calls are serialized by the model.
type Peripheral interface {
	Select(f Frame)
	Exchange(out byte) (in byte)
	Deselect()
}

// Loopback is a peripheral that shifts back every byte it receives, delayed
// by nothing: the byte clocked in equals the byte clocked out.
type Loopback struct{}

// Select implements [Peripheral].
func (Loopback) Select(Frame) {}

// Exchange implements [Peripheral].
func (Loopback) Exchange(out byte) byte { return out }

// Deselect implements [Peripheral].
func (Loopback) Deselect() {}
