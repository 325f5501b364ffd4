// Package sim provides an in-memory model of the UEFC xSPI host controller
// for testing and simulation.
//
// [HAL] implements [hal.ControllerHAL] over a register array with the side
// effects of the real block:
//
//   - Transfer Control bits self-clear and drive chip-select
//   - Writes to a TX data port shift bytes through the selected
//     [Peripheral] and queue the bytes shifted in on the RX port
//   - Interrupt status registers are write-1-to-clear
//   - Writing the SDMA address with DMA enabled runs the data phase against
//     a buffer registered through DMAAddress, optionally in chunks separated
//     by intermediate DMA interrupts, then raises transfer-complete and
//     releases chip-select
//
// Peripherals attach per port select value. [Memory] models a serial RAM
// that understands common read, program, read-ID and status opcodes;
// [Loopback] echoes every byte.
//
// # Usage
//
//	h := sim.New(sim.Options{})
//	h.Attach(0, sim.NewMemory(1<<16))
//
//	c, err := host.New(h, nil, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The model also records every register write and counts chip-select
// transitions so tests can assert on bus behaviour.
package sim
