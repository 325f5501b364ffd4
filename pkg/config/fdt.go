package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"

	"github.com/ardnew/xspi/host"
	"github.com/ardnew/xspi/pkg"
)

const fdtMagic = 0xd00dfeed

// Compatible strings of controller nodes, in order of preference.
var compatibles = []string{
	"mxicy,uefc",
	"mxicy,mx25-spi",
	"xlnx,mxic-uefc-controller",
}

// Default cell counts when a node carries no #address-cells/#size-cells.
const (
	defaultAddressCells = 2
	defaultSizeCells    = 1
	busAddressCells     = 1 // Chip-select children of a SPI controller
)

// parseTree parses a device tree blob. The fdt parser panics on truncated
// blobs, so panics are returned as errors.
func parseTree(blob []byte) (t *fdt.Tree, err error) {
	if !isDeviceTree(blob) {
		return nil, fmt.Errorf("bad device tree magic: %w", pkg.ErrInvalidParameter)
	}

	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("malformed device tree: %v: %w", r, pkg.ErrInvalidParameter)
		}
	}()

	t = &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err := t.Parse(blob); err != nil {
		return nil, fmt.Errorf("parse device tree: %w: %w", pkg.ErrInvalidParameter, err)
	}
	if t.RootNode == nil {
		return nil, fmt.Errorf("device tree has no root: %w", pkg.ErrInvalidParameter)
	}
	return t, nil
}

// sortedChildren returns the children of n ordered by name.
func sortedChildren(n *fdt.Node) []*fdt.Node {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	nodes := make([]*fdt.Node, len(names))
	for i, name := range names {
		nodes[i] = n.Children[name]
	}
	return nodes
}

// walker reads properties with the byte order of its tree.
type walker struct{ t *fdt.Tree }

func (w walker) cellsOf(n *fdt.Node, prop string, def int) int {
	if b, ok := n.Properties[prop]; ok && len(b) >= 4 {
		return int(w.t.PropUint32(b))
	}
	return def
}

// findController returns the first enabled controller node in name order
// and the #address-cells in effect for its reg property.
func (w walker) findController(n *fdt.Node) (*fdt.Node, int) {
	childCells := w.cellsOf(n, "#address-cells", defaultAddressCells)
	for _, c := range sortedChildren(n) {
		if w.isController(c) {
			return c, childCells
		}
		if found, cells := w.findController(c); found != nil {
			return found, cells
		}
	}
	return nil, 0
}

func (w walker) isController(n *fdt.Node) bool {
	b, ok := n.Properties["compatible"]
	if !ok {
		return false
	}
	if status, ok := n.Properties["status"]; ok {
		if s := w.t.PropString(status); s != "okay" && s != "ok" {
			return false
		}
	}
	for _, have := range w.t.PropStringSlice(b) {
		for _, want := range compatibles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// u32 returns the first cell of property name.
func (w walker) u32(n *fdt.Node, name string) (uint32, bool) {
	b, ok := n.Properties[name]
	if !ok || len(b) < 4 {
		return 0, false
	}
	return w.t.PropUint32(b), true
}

func (w walker) str(n *fdt.Node, name string) (string, bool) {
	b, ok := n.Properties[name]
	if !ok || len(b) == 0 {
		return "", false
	}
	return w.t.PropString(b), true
}

// address joins the first cells cells of b into one value.
func (w walker) address(b []byte, cells int) (uint64, error) {
	if cells <= 0 || cells > 2 || len(b) < 4*cells {
		return 0, fmt.Errorf("reg with %d address cells: %w", cells, pkg.ErrInvalidParameter)
	}
	var v uint64
	for _, c := range w.t.PropUint32Slice(b[:4*cells]) {
		v = v<<32 | uint64(c)
	}
	return v, nil
}

// FromDeviceTree fills f from the controller node of a flattened device
// tree blob. Properties absent from the node keep their current values.
func FromDeviceTree(blob []byte, f *File) error {
	t, err := parseTree(blob)
	if err != nil {
		return err
	}
	w := walker{t: t}

	n, addrCells := w.findController(t.RootNode)
	if n == nil {
		return fmt.Errorf("no controller node compatible with %s: %w",
			strings.Join(compatibles, ", "), pkg.ErrNoDevice)
	}

	ctrl := &f.Controller
	if reg, ok := n.Properties["reg"]; ok {
		if ctrl.BaseAddress, err = w.address(reg, addrCells); err != nil {
			return fmt.Errorf("%s: %w", n.Name, err)
		}
	}
	if b, ok := n.Properties["interrupts"]; ok && len(b) >= 4 {
		cells := w.t.PropUint32Slice(b)
		// Three-cell GIC specifiers carry the number in the second cell.
		if len(cells) >= 3 {
			ctrl.IRQ = int(cells[1])
		} else {
			ctrl.IRQ = int(cells[0])
		}
	}
	if v, ok := w.u32(n, "clock-frequency"); ok {
		ctrl.ClockHz = v
	}
	if v, ok := w.u32(n, "mspi-max-frequency"); ok {
		ctrl.MaxFrequency = v
	}
	_, ctrl.MultiPeripheral = n.Properties["software-multiperipheral"]
	_, ctrl.DQSSupport = n.Properties["dqs-support"]

	periphs, devices, err := w.peripherals(n)
	if err != nil {
		return err
	}
	if len(periphs) > 0 {
		ctrl.Peripherals = periphs
		f.Devices = devices
	}

	pkg.LogDebug(pkg.ComponentConfig, "device tree controller",
		"node", n.Name, "base", fmt.Sprintf("%#x", ctrl.BaseAddress),
		"irq", ctrl.IRQ, "peripherals", len(periphs))
	return nil
}

// peripherals reads the chip-select children of controller node n in port
// order.
func (w walker) peripherals(n *fdt.Node) ([]host.ChipSelect, []Device, error) {
	type child struct {
		cs  host.ChipSelect
		dev Device
	}

	cells := w.cellsOf(n, "#address-cells", busAddressCells)
	var children []child
	for _, c := range sortedChildren(n) {
		reg, ok := c.Properties["reg"]
		if !ok {
			continue
		}
		port, err := w.address(reg, cells)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.Name, err)
		}

		cs := host.ChipSelect{Port: uint8(port)}
		if v, ok := w.u32(c, "mxicy,channel"); ok {
			cs.Channel = uint8(v)
		}
		if v, ok := w.u32(c, "mxicy,lun"); ok {
			cs.LUN = uint8(v)
		}

		dev, err := w.device(c)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		children = append(children, child{cs, dev})
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].cs.Port < children[j].cs.Port
	})

	periphs := make([]host.ChipSelect, len(children))
	devices := make([]Device, len(children))
	for i, c := range children {
		periphs[i], devices[i] = c.cs, c.dev
	}
	return periphs, devices, nil
}

var byteLength = regexp.MustCompile(`_(\d)_BYTE$`)

// device reads the MSPI device properties of peripheral node c.
func (w walker) device(c *fdt.Node) (Device, error) {
	d := DefaultDevice()

	if v, ok := w.u32(c, "mspi-max-frequency"); ok {
		d.Frequency = v
	}
	if s, ok := w.str(c, "mspi-io-mode"); ok {
		s = strings.TrimPrefix(s, "MSPI_IO_MODE_")
		d.IOMode = strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	}
	if s, ok := w.str(c, "mspi-data-rate"); ok {
		s = strings.TrimPrefix(s, "MSPI_DATA_RATE_")
		d.DataRate = strings.ToLower(strings.ReplaceAll(s, "_", ""))
	}
	if v, ok := w.u32(c, "mspi-hardware-ce-num"); ok {
		d.CENum = uint8(v)
	}
	_, d.DQS = c.Properties["mspi-dqs-enable"]

	for prop, dst := range map[string]*uint8{
		"command-length": &d.CmdLength,
		"address-length": &d.AddrLength,
	} {
		s, ok := w.str(c, prop)
		if !ok {
			continue
		}
		m := byteLength.FindStringSubmatch(s)
		if m == nil {
			return Device{}, fmt.Errorf("%s %q: %w", prop, s, pkg.ErrInvalidParameter)
		}
		n, _ := strconv.Atoi(m[1])
		*dst = uint8(n)
	}
	return d, nil
}
