package sim

import (
	"sync"

	"github.com/sigurn/crc8"
)

// Serial memory opcodes understood by [Memory]. Two-byte (octal DTR)
// commands are classified by their first byte.
const (
	CmdWriteDisable  = 0x04
	CmdReadStatus    = 0x05
	CmdWriteEnable   = 0x06
	CmdPageProgram   = 0x02
	CmdRead          = 0x03
	CmdFastRead      = 0x0B
	CmdFastRead4B    = 0x0C
	CmdOctalProgram  = 0x12
	CmdQuadProgram   = 0x38
	CmdDualRead      = 0x3B
	CmdQuadRead      = 0x6B
	CmdReadID        = 0x9F
	CmdDualIORead    = 0xBB
	CmdQuadIORead    = 0xEB
	CmdOctalIORead   = 0xEC
	CmdOctalDTRRead  = 0xEE
	CmdQuadProgram4B = 0x3E
)

type memOp int

const (
	opNone memOp = iota
	opRead
	opProgram
	opID
	opStatus
)

func classify(cmd byte) memOp {
	switch cmd {
	case CmdRead, CmdFastRead, CmdFastRead4B, CmdDualRead, CmdQuadRead,
		CmdDualIORead, CmdQuadIORead, CmdOctalIORead, CmdOctalDTRRead:
		return opRead
	case CmdPageProgram, CmdOctalProgram, CmdQuadProgram, CmdQuadProgram4B:
		return opProgram
	case CmdReadID:
		return opID
	case CmdReadStatus:
		return opStatus
	default:
		return opNone
	}
}

type memPhase int

const (
	phaseCmd memPhase = iota
	phaseAddr
	phaseDummy
	phaseData
)

// DefaultID is the JEDEC identifier reported by a [Memory] created without
// one (Macronix MX25UM51245G).
var DefaultID = []byte{0xC2, 0x80, 0x3A}

var crcTable = crc8.MakeTable(crc8.CRC8)

// Memory models a serial RAM behind a chip-select. Program commands write
// without a preceding write-enable; addresses wrap at the memory size.
type Memory struct {
	mu   sync.Mutex
	data []byte
	id   []byte

	selected bool
	frame    Frame
	phase    memPhase
	n        int
	first    byte
	op       memOp
	addr     uint32
	idx      int
}

// NewMemory creates a memory of the given size, filled with 0xFF. If id is
// empty [DefaultID] is reported.
func NewMemory(size int, id ...byte) *Memory {
	if len(id) == 0 {
		id = DefaultID
	}
	m := &Memory{
		data: make([]byte, size),
		id:   append([]byte(nil), id...),
	}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

// Select implements [Peripheral].
func (m *Memory) Select(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = true
	m.frame = f
	m.phase = phaseCmd
	m.n, m.idx, m.addr = 0, 0, 0
	m.op = opNone
}

// Deselect implements [Peripheral].
func (m *Memory) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = false
}

// Exchange implements [Peripheral].
func (m *Memory) Exchange(out byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.selected {
		return 0xFF
	}

	switch m.phase {
	case phaseCmd:
		if m.n == 0 {
			m.first = out
		}
		m.n++
		if m.n >= m.frame.CmdBytes {
			m.op = classify(m.first)
			m.advance(phaseAddr)
		}
		return 0xFF
	case phaseAddr:
		m.addr = m.addr<<8 | uint32(out)
		m.n++
		if m.n >= m.frame.AddrBytes {
			m.advance(phaseDummy)
		}
		return 0xFF
	case phaseDummy:
		m.n++
		if m.n >= m.frame.DummyBytes {
			m.advance(phaseData)
		}
		return 0xFF
	}

	return m.dataPhase(out)
}

// advance enters phase p, skipping phases of zero length.
func (m *Memory) advance(p memPhase) {
	m.n = 0
	if p == phaseAddr && m.frame.AddrBytes == 0 {
		p = phaseDummy
	}
	if p == phaseDummy && m.frame.DummyBytes == 0 {
		p = phaseData
	}
	m.phase = p
}

func (m *Memory) dataPhase(out byte) byte {
	if len(m.data) == 0 && (m.op == opRead || m.op == opProgram) {
		return 0xFF
	}
	switch m.op {
	case opRead:
		b := m.data[int(m.addr)%len(m.data)]
		m.addr++
		return b
	case opProgram:
		m.data[int(m.addr)%len(m.data)] = out
		m.addr++
		return 0xFF
	case opID:
		b := m.id[m.idx%len(m.id)]
		m.idx++
		return b
	case opStatus:
		return 0x00
	default:
		return 0xFF
	}
}

// Load copies data into the memory at the given offset.
func (m *Memory) Load(offset int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[offset:], data)
}

// Bytes returns a copy of n bytes starting at offset.
func (m *Memory) Bytes(offset, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[offset:offset+n]...)
}

// Size returns the memory size in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// Checksum returns the CRC-8 of n bytes starting at offset.
func (m *Memory) Checksum(offset, n int) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return crc8.Checksum(m.data[offset:offset+n], crcTable)
}
