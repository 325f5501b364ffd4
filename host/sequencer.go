package host

import (
	"errors"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/reg"
)

// csStart opens an I/O cycle and asserts chip-select. Each control bit
// self-clears when the controller has acted on it. If any step times out the
// chip-select is released before the error is returned.
func (c *Controller) csStart() error {
	for _, bit := range []uint32{reg.CtrlIOStart, reg.CtrlHostActive, reg.CtrlDeviceActive} {
		c.regs.write(reg.TransferCtrl, bit)
		if err := c.regs.waitClear(reg.TransferCtrl, bit); err != nil {
			return errors.Join(err, c.csEnd())
		}
	}
	return nil
}

// csEnd de-asserts chip-select and closes the I/O cycle.
func (c *Controller) csEnd() error {
	for _, bit := range []uint32{reg.CtrlDeviceDisable, reg.CtrlIOEnd} {
		c.regs.write(reg.TransferCtrl, bit)
		if err := c.regs.waitClear(reg.TransferCtrl, bit); err != nil {
			return err
		}
	}
	return nil
}

// shift moves n bytes through the FIFO, up to four per step. Bytes come from
// tx, or are 0xFF filler when tx is nil; received bytes are stored in rx when
// it is not nil. With pad set, odd steps are rounded up to an even count on
// the wire and the pad byte is discarded.
func (c *Controller) shift(tx, rx []byte, n int, pad bool) error {
	for off := 0; off < n; off += hal.WordSize {
		step := min(n-off, hal.WordSize)
		wire := step
		if pad && step%2 != 0 {
			wire++
		}

		word := uint32(0xFFFFFFFF)
		if tx != nil {
			word = hal.PackWord(word, tx[off:off+step])
		}

		if err := c.regs.waitSet(reg.PresentState, reg.PresTxNotFull); err != nil {
			return err
		}
		c.regs.write(reg.TXData(wire), word)

		if err := c.regs.waitSet(reg.PresentState, reg.PresRxNotEmpty); err != nil {
			return err
		}
		in := c.regs.read(reg.RXData)
		if rx != nil {
			hal.UnpackWord(in, rx[off:off+step])
		}
	}
	return nil
}

// dummyBytes converts dummy clock cycles to FIFO bytes. Dummy cycles use the
// data phase width and rate.
func dummyBytes(cycles uint16, bw BusWidth) int {
	lines := bw.DataLines
	if lines <= 0 {
		lines = 1
	}
	return int(cycles) * (1 + int(b2u(bw.DataDDR))) / (8 / lines)
}

// bigEndian returns the low n bytes of v, most significant first.
func bigEndian(v uint32, n uint8) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(v >> (8 * (int(n) - 1 - i)))
	}
	return b
}

// commandPhases shifts the command, address and dummy phases of p.
func (c *Controller) commandPhases(xfer *Transfer, p *Packet, bw BusWidth) error {
	if xfer.CmdLength > 0 {
		if err := c.shift(bigEndian(p.Cmd, xfer.CmdLength), nil, int(xfer.CmdLength), false); err != nil {
			return err
		}
	}
	if xfer.AddrLength > 0 {
		if err := c.shift(bigEndian(p.Addr, xfer.AddrLength), nil, int(xfer.AddrLength), false); err != nil {
			return err
		}
	}
	if n := dummyBytes(xfer.dummy(p.Dir), bw); n > 0 {
		if err := c.shift(nil, nil, n, false); err != nil {
			return err
		}
	}
	return nil
}

// dataPhase shifts the data of p in its direction.
func (c *Controller) dataPhase(p *Packet, bw BusWidth) error {
	if len(p.Data) == 0 {
		return nil
	}
	if p.Dir == DirRX {
		return c.shift(nil, p.Data, len(p.Data), bw.octalDDR())
	}
	return c.shift(p.Data, nil, len(p.Data), bw.octalDDR())
}
