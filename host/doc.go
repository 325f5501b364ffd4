// Package host implements the transfer engine of a UEFC-style xSPI host
// controller.
//
// It is platform-agnostic and reaches the controller through the
// [hal.ControllerHAL] interface defined in the
// github.com/ardnew/xspi/host/hal package. The HAL exposes 32-bit register
// access, DMA address translation and the interrupt line; everything above
// that (phase sequencing, arbitration, datapaths) lives here.
//
// # Architecture
//
// The engine is organized into several layers:
//
//   - Controller owns one register block and its interrupt line
//   - Configure binds a logical device and programs its bus parameters
//   - Transceive runs a transfer through the PIO or DMA datapath
//   - HandleInterrupt and Serve observe DMA completion
//
// # Bus Phases
//
// Each packet is framed by one chip-select assertion and consists of:
//
//   - Command: one or two opcode bytes, most significant first
//   - Address: up to four bytes, most significant first
//   - Dummy: idle cycles at the data phase width and rate
//   - Data: transmit or receive, through the FIFO or the DMA engine
//
// # Arbitration
//
// One transfer is in flight per controller. Callers contend for a single
// token; a zero transfer timeout tries once, a positive one waits up to that
// long. Binding a different device takes a second configuration lock that
// is held until [Controller.GetChannelStatus] releases it.
//
// # Example
//
//	c, err := host.New(hal, nil, host.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	go c.Serve(ctx)
//
//	dev, _ := host.NewDeviceID(c.Config(), 0)
//	err = c.Configure(ctx, dev, host.ConfigAll, host.DeviceConfig{
//	    Frequency:  50_000_000,
//	    IOMode:     host.IOModeSingle,
//	    CmdLength:  1,
//	    AddrLength: 3,
//	})
//
//	id := make([]byte, 3)
//	err = c.Transceive(ctx, dev, &host.Transfer{
//	    CmdLength: 1,
//	    Timeout:   10 * time.Millisecond,
//	    Packets:   []host.Packet{{Dir: host.DirRX, Cmd: 0x9F, Data: id}},
//	})
//
// A register model for testing is available in
// [github.com/ardnew/xspi/host/hal/sim].
package host
