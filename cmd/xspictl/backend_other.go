//go:build !linux

package main

import (
	"fmt"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/pkg"
)

func openUIO(string) (hal.ControllerHAL, error) {
	return nil, fmt.Errorf("uio backend requires linux: %w", pkg.ErrNotSupported)
}
