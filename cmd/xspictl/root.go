package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/xspi/host"
	"github.com/ardnew/xspi/pkg"
	"github.com/ardnew/xspi/pkg/prof"
)

// Component identifier for xspictl logging.
const componentCLI pkg.Component = "xspictl"

// Backend names.
const (
	backendSim = "sim"
	backendUIO = "uio"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	envFiles   []string
	backend    string
	device     int
	mode       string
	timeout    time.Duration
	verbose    bool
	json       bool

	simSize  int
	simImage string

	profile prof.Options
	prof    *prof.Session
}

func (o *options) xferMode() (host.XferMode, error) {
	switch o.mode {
	case "pio":
		return host.ModePIO, nil
	case "dma":
		return host.ModeDMA, nil
	default:
		return 0, fmt.Errorf("unknown transfer mode %q: %w", o.mode, pkg.ErrInvalidParameter)
	}
}

func (o *options) setupLogging() {
	if o.verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if o.json {
		pkg.SetLogger(pkg.NewJSONLogger(os.Stderr, &slog.HandlerOptions{
			Level: pkg.GetLogLevel(),
		}))
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "xspictl",
		Short: "Drive an xSPI host controller",
		Long: `xspictl reads, writes and inspects serial memories behind an xSPI host ` +
			`controller, either the built-in register model or a controller exported ` +
			`through Linux UIO.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.setupLogging()
			s, err := prof.Start(opts.profile)
			if err != nil {
				return err
			}
			opts.prof = s
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prof.Stop()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML or device tree configuration file")
	f.StringSliceVar(&opts.envFiles, "env", []string{".env"}, "environment files with XSPI_* overrides")
	f.StringVarP(&opts.backend, "backend", "b", backendSim, "controller backend (sim, uio)")
	f.IntVarP(&opts.device, "device", "d", 0, "peripheral index")
	f.StringVarP(&opts.mode, "mode", "m", "pio", "transfer mode (pio, dma)")
	f.DurationVar(&opts.timeout, "timeout", host.DefaultTimeoutCeiling, "per-transfer timeout")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	f.BoolVar(&opts.json, "json", false, "log as JSON")
	f.IntVar(&opts.simSize, "sim-size", 1<<20, "memory size of each simulated peripheral")
	f.StringVar(&opts.simImage, "sim-image", "", "file preloaded into the simulated peripheral")
	f.StringVar(&opts.profile.CPU, "cpuprofile", "", "write a CPU profile (profile builds only)")
	f.StringVar(&opts.profile.Heap, "memprofile", "", "write a heap profile (profile builds only)")
	f.StringVar(&opts.profile.Block, "blockprofile", "", "write a blocking profile (profile builds only)")
	f.StringVar(&opts.profile.Mutex, "mutexprofile", "", "write a mutex contention profile (profile builds only)")

	root.AddCommand(
		newIDCmd(opts),
		newReadCmd(opts),
		newWriteCmd(opts),
		newVerifyCmd(opts),
		newRegsCmd(opts),
	)
	return root
}
