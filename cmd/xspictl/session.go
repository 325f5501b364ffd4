package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/platinasystems/gpio"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/xspi/host"
	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/hal/sim"
	"github.com/ardnew/xspi/pkg"
	"github.com/ardnew/xspi/pkg/config"
)

// JEDEC opcodes used for control and data commands.
const (
	cmdWriteEnable = 0x06
	cmdReadStatus  = 0x05
	cmdReadID      = 0x9F
	cmdPageProgram = 0x02
	cmdFastRead    = 0x0B

	statusWIP       = 0x01 // Write in progress
	readyAttempts   = 1000
	readyInterval   = 100 * time.Microsecond
	defaultPageSize = 256
	readChunk       = 4096
)

// session is an initialized controller with one bound peripheral.
type session struct {
	opts   *options
	file   config.File
	hal    hal.ControllerHAL
	ctrl   *host.Controller
	dev    *host.DeviceID
	devCfg host.DeviceConfig
	mode   host.XferMode

	cancel context.CancelFunc
	serve  *errgroup.Group
}

// openSession loads the configuration, brings up the controller and, when
// bind is set, configures the selected peripheral.
func openSession(ctx context.Context, opts *options, bind bool) (*session, error) {
	file, err := config.Load(opts.configPath, opts.envFiles...)
	if err != nil {
		return nil, err
	}
	mode, err := opts.xferMode()
	if err != nil {
		return nil, err
	}

	h, pins, err := openBackend(opts, &file)
	if err != nil {
		return nil, err
	}

	ctrl, err := host.New(h, pins, file.Controller)
	if err != nil {
		h.Close()
		return nil, err
	}
	if err := ctrl.Init(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return ctrl.Serve(gctx) })

	s := &session{
		opts:   opts,
		file:   file,
		hal:    h,
		ctrl:   ctrl,
		mode:   mode,
		cancel: cancel,
		serve:  g,
	}

	if bind {
		if err := s.bind(ctx); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func openBackend(opts *options, file *config.File) (hal.ControllerHAL, hal.PinController, error) {
	switch opts.backend {
	case backendSim:
		h, err := newSimBackend(opts, &file.Controller)
		return h, nil, err
	case backendUIO:
		h, err := openUIO(file.UIO)
		if err != nil {
			return nil, nil, err
		}
		return h, file.PinController(gpio.Pins), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q: %w", opts.backend, pkg.ErrInvalidParameter)
	}
}

// newSimBackend builds a register model with a memory on every configured
// chip-select.
func newSimBackend(opts *options, cfg *host.Config) (*sim.HAL, error) {
	h := sim.New(sim.Options{ChipSelects: max(len(cfg.Peripherals), sim.DefaultChipSelects)})

	for i, cs := range cfg.Peripherals {
		mem := sim.NewMemory(opts.simSize)
		if i == opts.device && opts.simImage != "" {
			img, err := os.ReadFile(opts.simImage)
			if err != nil {
				return nil, err
			}
			if len(img) > mem.Size() {
				return nil, fmt.Errorf("image of %d bytes exceeds %d byte memory: %w",
					len(img), mem.Size(), pkg.ErrNoMemory)
			}
			mem.Load(0, img)
		}
		h.Attach(int(cs.Port), mem)
	}
	return h, nil
}

func (s *session) bind(ctx context.Context) error {
	dev, err := host.NewDeviceID(s.file.Controller, s.opts.device)
	if err != nil {
		return err
	}
	cfgs, err := s.file.DeviceConfigs()
	if err != nil {
		return err
	}
	cfg := cfgs[dev.Index]
	if err := s.ctrl.Configure(ctx, dev, host.ConfigAll, cfg); err != nil {
		return fmt.Errorf("configure %s: %w", dev, err)
	}
	s.dev, s.devCfg = dev, cfg

	pkg.LogDebug(componentCLI, "device bound",
		"device", dev, "frequency", cfg.Frequency, "io", cfg.IOMode, "rate", cfg.DataRate)
	return nil
}

// close releases the bound device and shuts the controller down.
func (s *session) close() error {
	if s.dev != nil {
		if err := s.ctrl.GetChannelStatus(s.dev.CE.Channel); err != nil {
			pkg.LogWarn(componentCLI, "device release failed", "error", err)
		}
	}
	err := s.ctrl.Close()
	s.cancel()
	if serr := s.serve.Wait(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// buffer returns an n byte data buffer the current transfer mode can use.
func (s *session) buffer(n int) ([]byte, error) {
	if a, ok := s.hal.(hal.DMAAllocator); ok && s.mode == host.ModeDMA {
		return a.DMABuffer(n)
	}
	return make([]byte, n), nil
}

// =============================================================================
// Memory Commands
// =============================================================================

// control runs a single command-only or short PIO packet.
func (s *session) control(ctx context.Context, dir host.Direction, cmd uint32, data []byte) error {
	return s.ctrl.Transceive(ctx, s.dev, &host.Transfer{
		Mode:      host.ModePIO,
		CmdLength: s.devCfg.CmdLength,
		Timeout:   s.opts.timeout,
		Packets:   []host.Packet{{Dir: dir, Cmd: cmd, Data: data}},
	})
}

func (s *session) readID(ctx context.Context) ([]byte, error) {
	id := make([]byte, 3)
	if err := s.control(ctx, host.DirRX, cmdReadID, id); err != nil {
		return nil, err
	}
	return id, nil
}

// waitReady polls the status register until no write is in progress.
func (s *session) waitReady(ctx context.Context) error {
	status := make([]byte, 1)
	for range readyAttempts {
		if err := s.control(ctx, host.DirRX, cmdReadStatus, status); err != nil {
			return err
		}
		if status[0]&statusWIP == 0 {
			return nil
		}
		time.Sleep(readyInterval)
	}
	return fmt.Errorf("status 0x%02x: %w", status[0], pkg.ErrTimeout)
}

func (s *session) data(ctx context.Context, dir host.Direction, cmd uint32, dummy uint16, addr uint32, buf []byte) error {
	xfer := &host.Transfer{
		Mode:       s.mode,
		CmdLength:  s.devCfg.CmdLength,
		AddrLength: s.devCfg.AddrLength,
		Timeout:    s.opts.timeout,
		Packets:    []host.Packet{{Dir: dir, Cmd: cmd, Addr: addr, Data: buf}},
	}
	if dir == host.DirRX {
		xfer.RxDummy = dummy
	} else {
		xfer.TxDummy = dummy
	}
	return s.ctrl.Transceive(ctx, s.dev, xfer)
}

// read fills n bytes from addr in chunks and passes each to emit.
func (s *session) read(ctx context.Context, cmd uint32, dummy uint16, addr uint32, n int, emit func([]byte) error) error {
	buf, err := s.buffer(min(n, readChunk))
	if err != nil {
		return err
	}
	for n > 0 {
		chunk := buf[:min(n, len(buf))]
		if err := s.data(ctx, host.DirRX, cmd, dummy, addr, chunk); err != nil {
			return fmt.Errorf("read at %#x: %w", addr, err)
		}
		if err := emit(chunk); err != nil {
			return err
		}
		addr += uint32(len(chunk))
		n -= len(chunk)
	}
	return nil
}

// program writes data at addr without crossing page boundaries.
func (s *session) program(ctx context.Context, cmd uint32, page int, addr uint32, data []byte) error {
	buf, err := s.buffer(min(len(data), page))
	if err != nil {
		return err
	}
	for len(data) > 0 {
		n := min(len(data), page-int(addr%uint32(page)), len(buf))
		chunk := buf[:n]
		copy(chunk, data)

		if err := s.control(ctx, host.DirTX, cmdWriteEnable, nil); err != nil {
			return fmt.Errorf("write enable: %w", err)
		}
		if err := s.data(ctx, host.DirTX, cmd, 0, addr, chunk); err != nil {
			return fmt.Errorf("program at %#x: %w", addr, err)
		}
		if err := s.waitReady(ctx); err != nil {
			return fmt.Errorf("program at %#x: %w", addr, err)
		}
		addr += uint32(n)
		data = data[n:]
	}
	return nil
}
