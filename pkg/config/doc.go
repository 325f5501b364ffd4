// Package config loads controller and peripheral configuration.
//
// A [File] is built in layers: [Default] values, then a YAML document or a
// flattened device tree blob, then XSPI_* environment overrides:
//
//	f, err := config.Load("board.yaml", ".env")
//	if err != nil {
//	    return err
//	}
//	ctrl, err := host.New(h, f.PinController(gpio.Pins), f.Controller)
//
// # YAML
//
// Unknown keys are rejected. Durations use Go syntax ("200ms"), IO modes
// and data rates use the names accepted by [host.ParseIOMode] and
// [host.ParseDataRate]:
//
//	uio: uefc
//	controller:
//	  base_address: 0x43c00000
//	  clock_hz: 200000000
//	  peripherals:
//	    - {port: 0}
//	    - {port: 1}
//	devices:
//	  - {frequency: 50000000, io_mode: octal, data_rate: ddr}
//	  - {frequency: 25000000, io_mode: single}
//	pins:
//	  - {QSPI_MUX_SEL: false}
//	  - {QSPI_MUX_SEL: true}
//
// # Device Tree
//
// [FromDeviceTree] reads the first enabled node compatible with
// "mxicy,uefc", "mxicy,mx25-spi" or "xlnx,mxic-uefc-controller". Child
// nodes with a reg property become peripherals in port order.
package config
