// Package gpiomux implements [hal.PinController] by driving GPIO lines that
// select which flash part, level shifter or bus mux a peripheral uses.
package gpiomux

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinasystems/gpio"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/pkg"
)

// DefaultSettle is the delay after driving a profile before the bus is used.
const DefaultSettle = time.Millisecond

// Line is a GPIO output. *gpio.Pin satisfies it.
type Line interface {
	SetValue(bool) error
}

// Profile maps GPIO line names to the level each must be driven to.
type Profile map[string]bool

// Mux applies per-peripheral profiles to a set of named lines.
type Mux struct {
	mu       sync.Mutex
	lines    map[string]Line
	profiles []Profile
	settle   time.Duration
	current  int // Index of the profile in effect, -1 for none
}

// Option configures a [Mux].
type Option func(*Mux)

// WithSettle overrides [DefaultSettle].
func WithSettle(d time.Duration) Option {
	return func(m *Mux) { m.settle = d }
}

// New creates a mux over lines. profiles is indexed like the controller's
// peripheral table.
func New(lines map[string]Line, profiles []Profile, opts ...Option) *Mux {
	m := &Mux{
		lines:    lines,
		profiles: profiles,
		settle:   DefaultSettle,
		current:  -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromPinMap creates a mux over the lines of a gpio pin map, typically
// gpio.Pins after the device tree has been gathered.
func FromPinMap(pins gpio.PinMap, profiles []Profile, opts ...Option) *Mux {
	lines := make(map[string]Line, len(pins))
	for name, pin := range pins {
		p := pin
		lines[name] = &p
	}
	return New(lines, profiles, opts...)
}

// Apply drives the lines of profile index.
func (m *Mux) Apply(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.profiles) {
		return fmt.Errorf("pin profile %d of %d: %w", index, len(m.profiles), pkg.ErrInvalidParameter)
	}
	if index == m.current {
		return nil
	}

	profile := m.profiles[index]
	names := make([]string, 0, len(profile))
	for name := range profile {
		if _, ok := m.lines[name]; !ok {
			return fmt.Errorf("gpio line %q: %w", name, pkg.ErrNoDevice)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Any failure leaves the mux in an unknown state.
	m.current = -1
	for _, name := range names {
		if err := m.lines[name].SetValue(profile[name]); err != nil {
			return fmt.Errorf("gpio line %q: %w: %w", name, pkg.ErrIO, err)
		}
	}
	if m.settle > 0 {
		time.Sleep(m.settle)
	}
	m.current = index

	pkg.LogDebug(pkg.ComponentHAL, "pin profile applied", "index", index, "lines", len(names))
	return nil
}

// Reset forgets the profile in effect so the next Apply drives every line.
func (m *Mux) Reset() {
	m.mu.Lock()
	m.current = -1
	m.mu.Unlock()
}

var _ hal.PinController = (*Mux)(nil)
