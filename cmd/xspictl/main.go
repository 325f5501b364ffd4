// Command xspictl exercises an xSPI controller from the command line.
//
// It runs against the register model (--backend sim), which attaches a
// serial memory to every peripheral, or against a controller exported
// through Linux UIO (--backend uio):
//
//	xspictl id
//	xspictl --config board.yaml --backend uio read 0x1000 256
//	xspictl --mode dma verify 0 4096
//	xspictl regs
//
// Builds tagged "profile" accept --cpuprofile, --memprofile, --blockprofile
// and --mutexprofile.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
