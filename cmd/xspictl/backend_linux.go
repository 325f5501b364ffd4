//go:build linux

package main

import (
	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/hal/linux"
)

func openUIO(name string) (hal.ControllerHAL, error) {
	return linux.New(linux.DefaultOptions(name)), nil
}
