package linux

import (
	"errors"
	"testing"

	"github.com/ardnew/xspi/pkg"
)

func TestDMAArena_Alloc(t *testing.T) {
	mem := make([]byte, 256)
	a := newDMAArena(mem, 0x30000000)

	b1, err := a.alloc(10)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	b2, err := a.alloc(32)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}

	addr1, err := a.address(b1)
	if err != nil || addr1 != 0x30000000 {
		t.Errorf("address(b1) = %#x, %v; want 0x30000000", addr1, err)
	}
	addr2, err := a.address(b2)
	if err != nil || addr2 != 0x30000010 {
		t.Errorf("address(b2) = %#x, %v; want 0x30000010 (aligned)", addr2, err)
	}

	if cap(b1) != 10 {
		t.Errorf("cap(b1) = %d, want 10 so appends cannot overrun b2", cap(b1))
	}

	if _, err := a.alloc(256); !errors.Is(err, pkg.ErrNoMemory) {
		t.Errorf("oversized alloc = %v, want ErrNoMemory", err)
	}
	if _, err := a.alloc(0); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("zero alloc = %v, want ErrInvalidParameter", err)
	}

	a.reset()
	b3, err := a.alloc(256)
	if err != nil {
		t.Fatalf("alloc after reset: %v", err)
	}
	if addr, _ := a.address(b3); addr != 0x30000000 {
		t.Errorf("address after reset = %#x, want 0x30000000", addr)
	}
}

func TestDMAArena_Address(t *testing.T) {
	mem := make([]byte, 64)
	a := newDMAArena(mem, 0x1000)

	tests := []struct {
		name    string
		buf     []byte
		want    uint32
		wantErr bool
	}{
		{"whole region", mem, 0x1000, false},
		{"interior slice", mem[8:24], 0x1008, false},
		{"tail", mem[60:], 0x103C, false},
		{"foreign buffer", make([]byte, 8), 0, true},
		{"empty", mem[:0], 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.address(tt.buf)
			if tt.wantErr {
				if !errors.Is(err, pkg.ErrNoMemory) {
					t.Errorf("address = %v, want ErrNoMemory", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("address = %#x, %v; want %#x", got, err, tt.want)
			}
		})
	}

	empty := newDMAArena(nil, 0)
	if _, err := empty.address(make([]byte, 4)); !errors.Is(err, pkg.ErrNoMemory) {
		t.Errorf("address without region = %v, want ErrNoMemory", err)
	}
}
