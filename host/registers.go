package host

import (
	"fmt"
	"time"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// registers is the only path to the controller register block.
type registers struct {
	hal      hal.ControllerHAL
	attempts int
	interval time.Duration
}

func (r *registers) read(off reg.Offset) uint32 {
	return r.hal.Read32(uint32(off))
}

func (r *registers) write(off reg.Offset, v uint32) {
	r.hal.Write32(uint32(off), v)
}

// update replaces the bits selected by mask with the same bits of v.
func (r *registers) update(off reg.Offset, mask, v uint32) {
	cur := r.read(off)
	r.write(off, cur&^mask|v&mask)
}

// updateField replaces a single field.
func (r *registers) updateField(f reg.Field, v uint32) {
	r.update(f.Reg, f.Mask, f.Put(v))
}

// waitSet polls until every bit of mask reads as set.
func (r *registers) waitSet(off reg.Offset, mask uint32) error {
	return r.poll(off, mask, mask)
}

// waitClear polls until every bit of mask reads as clear.
func (r *registers) waitClear(off reg.Offset, mask uint32) error {
	return r.poll(off, mask, 0)
}

func (r *registers) poll(off reg.Offset, mask, want uint32) error {
	for i := 0; i < r.attempts; i++ {
		if r.read(off)&mask == want {
			return nil
		}
		if r.interval > 0 {
			time.Sleep(r.interval)
		}
	}
	pkg.LogWarn(pkg.ComponentController, "register poll exhausted",
		"reg", off.String(), "mask", fmt.Sprintf("%#08x", mask), "want", fmt.Sprintf("%#08x", want))
	return fmt.Errorf("%s mask %#08x: %w", off, mask, pkg.ErrTimeout)
}
