package gpiomux

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/xspi/pkg"
)

type event struct {
	name  string
	value bool
}

type fakeLine struct {
	name string
	log  *[]event
	err  error
}

func (l *fakeLine) SetValue(v bool) error {
	if l.err != nil {
		return l.err
	}
	*l.log = append(*l.log, event{l.name, v})
	return nil
}

func newLines(log *[]event, names ...string) map[string]Line {
	lines := make(map[string]Line, len(names))
	for _, n := range names {
		lines[n] = &fakeLine{name: n, log: log}
	}
	return lines
}

// =============================================================================
// Apply Tests
// =============================================================================

func TestMux_Apply(t *testing.T) {
	var log []event
	m := New(newLines(&log, "QSPI_MUX_SEL", "FLASH_OE_L"), []Profile{
		{"QSPI_MUX_SEL": false, "FLASH_OE_L": false},
		{"QSPI_MUX_SEL": true, "FLASH_OE_L": false},
	}, WithSettle(0))

	require.NoError(t, m.Apply(1))
	assert.Equal(t, []event{{"FLASH_OE_L", false}, {"QSPI_MUX_SEL", true}}, log,
		"lines are driven in name order")

	log = nil
	require.NoError(t, m.Apply(1))
	assert.Empty(t, log, "re-applying the current profile is a no-op")

	require.NoError(t, m.Apply(0))
	assert.Equal(t, []event{{"FLASH_OE_L", false}, {"QSPI_MUX_SEL", false}}, log)

	log = nil
	m.Reset()
	require.NoError(t, m.Apply(0))
	assert.Len(t, log, 2, "Reset forces the next Apply to drive every line")
}

func TestMux_ApplyErrors(t *testing.T) {
	var log []event
	lines := newLines(&log, "SEL")
	m := New(lines, []Profile{{"SEL": true}, {"MISSING": true}}, WithSettle(0))

	tests := []struct {
		index int
		want  error
	}{
		{-1, pkg.ErrInvalidParameter},
		{2, pkg.ErrInvalidParameter},
		{1, pkg.ErrNoDevice},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.index), func(t *testing.T) {
			assert.ErrorIs(t, m.Apply(tt.index), tt.want)
		})
	}
	assert.Empty(t, log)

	lines["SEL"].(*fakeLine).err = errors.New("write value: permission denied")
	err := m.Apply(0)
	assert.ErrorIs(t, err, pkg.ErrIO)

	lines["SEL"].(*fakeLine).err = nil
	require.NoError(t, m.Apply(0), "a failed profile is retried")
	assert.Equal(t, []event{{"SEL", true}}, log)
}

func TestMux_EmptyProfile(t *testing.T) {
	m := New(nil, []Profile{{}}, WithSettle(0))
	assert.NoError(t, m.Apply(0))
}
