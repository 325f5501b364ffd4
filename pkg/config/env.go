package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ardnew/xspi/pkg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "XSPI_"

type envVar struct {
	name  string
	apply func(v string) error
}

func setUint32(dst *uint32) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 0, 32)
		if err == nil {
			*dst = uint32(n)
		}
		return err
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

// envVars lists the overrides of f in the order they are applied.
func envVars(f *File) []envVar {
	c := &f.Controller
	return []envVar{
		{"UIO", func(v string) error { f.UIO = v; return nil }},
		{"BASE_ADDRESS", func(v string) error {
			n, err := strconv.ParseUint(v, 0, 64)
			if err == nil {
				c.BaseAddress = n
			}
			return err
		}},
		{"IRQ", setInt(&c.IRQ)},
		{"CLOCK_HZ", setUint32(&c.ClockHz)},
		{"MAX_FREQUENCY", setUint32(&c.MaxFrequency)},
		{"MAP_BASE", setUint32(&c.MapBase)},
		{"MAP_SIZE", setUint32(&c.MapSize)},
		{"MULTI_PERIPHERAL", setBool(&c.MultiPeripheral)},
		{"DQS_SUPPORT", setBool(&c.DQSSupport)},
		{"POLL_ATTEMPTS", setInt(&c.PollAttempts)},
		{"POLL_INTERVAL", setDuration(&c.PollInterval)},
		{"TIMEOUT_CEILING", setDuration(&c.TimeoutCeiling)},
		{"CONFIG_LOCK_TIMEOUT", setDuration(&c.ConfigLockTimeout)},

		// Device overrides apply to every peripheral.
		{"DEVICE_FREQUENCY", func(v string) error {
			n, err := strconv.ParseUint(v, 0, 32)
			if err != nil {
				return err
			}
			for i := range f.Devices {
				f.Devices[i].Frequency = uint32(n)
			}
			return nil
		}},
		{"IO_MODE", func(v string) error {
			for i := range f.Devices {
				f.Devices[i].IOMode = v
			}
			return nil
		}},
		{"DATA_RATE", func(v string) error {
			for i := range f.Devices {
				f.Devices[i].DataRate = v
			}
			return nil
		}},
	}
}

// ApplyEnv applies XSPI_* overrides to f. Values come from the process
// environment and from whichever envFiles exist. The process environment
// takes precedence.
func ApplyEnv(f *File, envFiles ...string) error {
	var existing []string
	for _, path := range envFiles {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	env := map[string]string{}
	if len(existing) > 0 {
		m, err := godotenv.Read(existing...)
		if err != nil {
			return fmt.Errorf("read env files: %w: %w", pkg.ErrInvalidParameter, err)
		}
		env = m
	}

	for _, ev := range envVars(f) {
		key := EnvPrefix + ev.name
		v, ok := os.LookupEnv(key)
		if !ok {
			v, ok = env[key]
		}
		if !ok {
			continue
		}
		if err := ev.apply(v); err != nil {
			return fmt.Errorf("%s=%q: %w: %w", key, v, pkg.ErrInvalidParameter, err)
		}
		pkg.LogDebug(pkg.ComponentConfig, "environment override", "key", key, "value", v)
	}
	return nil
}
