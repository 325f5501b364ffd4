//go:build linux

package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ardnew/xspi/pkg"
)

// =============================================================================
// UIO Device Information
// =============================================================================

// uioDevice holds the sysfs description of one UIO device.
type uioDevice struct {
	index int      // N in uioN
	name  string   // Driver-provided name
	maps  []uioMap // Memory maps, in map index order
}

// uioMap describes one mappable region of a UIO device.
type uioMap struct {
	name   string
	addr   uint64 // Physical (bus) address
	size   uint64
	offset uint64 // Offset of the region inside its first page
}

// devPath returns the device node of u under dir.
func (u *uioDevice) devPath(dir string) string {
	return filepath.Join(dir, "uio"+strconv.Itoa(u.index))
}

// =============================================================================
// Sysfs Parsing
// =============================================================================

// findUIO returns the first UIO device under root whose name equals name.
// An empty name selects the lowest-numbered device.
func findUIO(root, name string) (uioDevice, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return uioDevice{}, fmt.Errorf("scan %s: %w: %w", root, pkg.ErrNoDevice, err)
	}

	var found []uioDevice
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "uio") {
			continue
		}
		dev, err := parseUIO(filepath.Join(root, entry.Name()))
		if err != nil {
			pkg.LogDebug(pkg.ComponentHAL, "skipping uio entry", "entry", entry.Name(), "error", err)
			continue
		}
		if name == "" || dev.name == name {
			found = append(found, dev)
		}
	}

	if len(found) == 0 {
		return uioDevice{}, fmt.Errorf("uio device %q: %w", name, pkg.ErrNoDevice)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	return found[0], nil
}

// parseUIO reads a /sys/class/uio/uioN directory.
func parseUIO(dir string) (uioDevice, error) {
	index, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "uio"))
	if err != nil {
		return uioDevice{}, err
	}
	dev := uioDevice{index: index}

	if dev.name, err = readSysfsString(filepath.Join(dir, "name")); err != nil {
		return uioDevice{}, err
	}

	for i := 0; ; i++ {
		m, err := parseMap(filepath.Join(dir, "maps", "map"+strconv.Itoa(i)))
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return uioDevice{}, fmt.Errorf("map%d: %w", i, err)
		}
		dev.maps = append(dev.maps, m)
	}
	return dev, nil
}

// parseMap reads one maps/mapM directory.
func parseMap(dir string) (uioMap, error) {
	if _, err := os.Stat(dir); err != nil {
		return uioMap{}, err
	}

	var (
		m   uioMap
		err error
	)
	if m.addr, err = readSysfsHex(filepath.Join(dir, "addr"), 64); err != nil {
		return uioMap{}, err
	}
	if m.size, err = readSysfsHex(filepath.Join(dir, "size"), 64); err != nil {
		return uioMap{}, err
	}

	// offset and name are absent on older kernels
	if v, err := readSysfsHex(filepath.Join(dir, "offset"), 64); err == nil {
		m.offset = v
	}
	if s, err := readSysfsString(filepath.Join(dir, "name")); err == nil {
		m.name = s
	}
	return m, nil
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readSysfsHex reads a hexadecimal value from a sysfs attribute file.
func readSysfsHex(path string, bitSize int) (uint64, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, bitSize)
}
