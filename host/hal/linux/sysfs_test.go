//go:build linux

package linux

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/xspi/pkg"
)

// writeUIO creates a fake /sys/class/uio/uioN entry under root.
func writeUIO(t *testing.T, root string, index int, name string, maps ...[3]string) {
	t.Helper()
	dir := filepath.Join(root, "uio"+string(rune('0'+index)))
	mustWrite(t, filepath.Join(dir, "name"), name+"\n")
	for i, m := range maps {
		mdir := filepath.Join(dir, "maps", "map"+string(rune('0'+i)))
		mustWrite(t, filepath.Join(mdir, "addr"), m[0]+"\n")
		mustWrite(t, filepath.Join(mdir, "size"), m[1]+"\n")
		if m[2] != "" {
			mustWrite(t, filepath.Join(mdir, "offset"), m[2]+"\n")
		}
	}
}

func mustWrite(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// parseUIO Tests
// =============================================================================

func TestParseUIO(t *testing.T) {
	root := t.TempDir()
	writeUIO(t, root, 3, "uefc",
		[3]string{"0x43c00000", "0x00000100", "0x0"},
		[3]string{"0x30000000", "0x00100000", ""},
	)

	dev, err := parseUIO(filepath.Join(root, "uio3"))
	if err != nil {
		t.Fatalf("parseUIO: %v", err)
	}
	if dev.index != 3 || dev.name != "uefc" {
		t.Errorf("device = uio%d %q, want uio3 \"uefc\"", dev.index, dev.name)
	}
	if len(dev.maps) != 2 {
		t.Fatalf("maps = %d, want 2", len(dev.maps))
	}
	if dev.maps[0].addr != 0x43c00000 || dev.maps[0].size != 0x100 {
		t.Errorf("map0 = %+v", dev.maps[0])
	}
	if dev.maps[1].addr != 0x30000000 || dev.maps[1].offset != 0 {
		t.Errorf("map1 = %+v", dev.maps[1])
	}
	if got := dev.devPath("/dev"); got != "/dev/uio3" {
		t.Errorf("devPath = %q, want /dev/uio3", got)
	}
}

func TestParseUIO_BadMap(t *testing.T) {
	root := t.TempDir()
	writeUIO(t, root, 0, "uefc", [3]string{"zz", "0x100", ""})

	if _, err := parseUIO(filepath.Join(root, "uio0")); err == nil {
		t.Error("expected error for unparsable map address")
	}
}

// =============================================================================
// findUIO Tests
// =============================================================================

func TestFindUIO(t *testing.T) {
	root := t.TempDir()
	writeUIO(t, root, 2, "uefc", [3]string{"0x1000", "0x100", ""})
	writeUIO(t, root, 1, "gpio", [3]string{"0x2000", "0x100", ""})
	writeUIO(t, root, 4, "uefc", [3]string{"0x3000", "0x100", ""})
	mustWrite(t, filepath.Join(root, "not-uio"), "")

	tests := []struct {
		name  string
		index int
	}{
		{"uefc", 2},
		{"gpio", 1},
		{"", 1},
	}
	for _, tt := range tests {
		dev, err := findUIO(root, tt.name)
		if err != nil {
			t.Errorf("findUIO(%q): %v", tt.name, err)
			continue
		}
		if dev.index != tt.index {
			t.Errorf("findUIO(%q) = uio%d, want uio%d", tt.name, dev.index, tt.index)
		}
	}

	if _, err := findUIO(root, "missing"); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("findUIO(missing) = %v, want ErrNoDevice", err)
	}
	if _, err := findUIO(filepath.Join(root, "absent"), ""); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("findUIO(absent root) = %v, want ErrNoDevice", err)
	}
}

// =============================================================================
// readSysfsHex Tests
// =============================================================================

func TestReadSysfsHex(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		content string
		want    uint64
		wantErr bool
	}{
		{"0x1000\n", 0x1000, false},
		{"ff", 0xff, false},
		{"0xffffffff", 0xffffffff, false},
		{"0x", 0, true},
		{"xyz", 0, true},
	}
	for i, tt := range tests {
		path := filepath.Join(dir, "attr"+string(rune('a'+i)))
		mustWrite(t, path, tt.content)
		got, err := readSysfsHex(path, 64)
		if (err != nil) != tt.wantErr {
			t.Errorf("readSysfsHex(%q) error = %v, wantErr %v", tt.content, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("readSysfsHex(%q) = %#x, want %#x", tt.content, got, tt.want)
		}
	}
}
