package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func clock(m *Memory, out ...byte) []byte {
	in := make([]byte, len(out))
	for i, b := range out {
		in[i] = m.Exchange(b)
	}
	return in
}

var _ = Describe("Memory", func() {
	var m *Memory

	BeforeEach(func() {
		m = NewMemory(256)
	})

	It("should start erased", func() {
		Expect(m.Bytes(0, 4)).To(Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
		Expect(m.Size()).To(Equal(256))
	})

	It("should report its ID repeatedly", func() {
		m = NewMemory(16, 0xAA, 0xBB)
		m.Select(Frame{CmdBytes: 1})
		in := clock(m, CmdReadID, 0, 0, 0, 0)
		Expect(in[1:]).To(Equal([]byte{0xAA, 0xBB, 0xAA, 0xBB}))
	})

	It("should program and read back with dummy bytes", func() {
		m.Select(Frame{CmdBytes: 1, AddrBytes: 3})
		clock(m, CmdPageProgram, 0x00, 0x00, 0x10, 0xDE, 0xAD)
		m.Deselect()

		m.Select(Frame{CmdBytes: 1, AddrBytes: 3, DummyBytes: 1})
		in := clock(m, CmdFastRead, 0x00, 0x00, 0x10, 0xFF, 0xFF, 0xFF)
		m.Deselect()
		Expect(in[5:]).To(Equal([]byte{0xDE, 0xAD}))
	})

	It("should decode two-byte octal commands by their first byte", func() {
		m.Load(0x20, []byte{1, 2, 3})
		m.Select(Frame{CmdBytes: 2, AddrBytes: 4, DummyBytes: 2})
		in := clock(m, 0xEE, 0x11, 0, 0, 0, 0x20, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		Expect(in[8:]).To(Equal([]byte{1, 2, 3}))
	})

	It("should ignore traffic while deselected", func() {
		Expect(clock(m, CmdPageProgram, 0, 0, 0, 0x42)).To(Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
		Expect(m.Bytes(0, 1)).To(Equal([]byte{0xFF}))
	})

	It("should wrap addresses at the memory size", func() {
		m.Select(Frame{CmdBytes: 1, AddrBytes: 2})
		clock(m, CmdPageProgram, 0x00, 0xFF, 0x01, 0x02)
		m.Deselect()
		Expect(m.Bytes(0xFF, 1)).To(Equal([]byte{0x01}))
		Expect(m.Bytes(0x00, 1)).To(Equal([]byte{0x02}))
	})

	It("should checksum its contents", func() {
		a := m.Checksum(0, 16)
		m.Load(0, []byte{0x00})
		Expect(m.Checksum(0, 16)).NotTo(Equal(a))
	})

	It("should loop bytes back", func() {
		var lb Loopback
		lb.Select(Frame{})
		Expect(lb.Exchange(0x5A)).To(Equal(byte(0x5A)))
		lb.Deselect()
	})
})
