//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// ErrActive is returned by [Start] while another session is running.
var ErrActive = errors.New("profiling already active")

var (
	mu     sync.Mutex
	active bool
)

// Session is a running profile capture.
type Session struct {
	opts Options
	cpu  *os.File
	done bool
}

// Start begins the profiles selected by opts. Empty opts return an inert
// session without claiming the profiler.
func Start(opts Options) (*Session, error) {
	if !opts.Enabled() {
		return &Session{done: true}, nil
	}

	mu.Lock()
	defer mu.Unlock()

	if active {
		return nil, ErrActive
	}

	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpu = f
	}
	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if opts.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}

	active = true
	return s, nil
}

// Stop ends CPU profiling and writes the snapshot profiles. Calling Stop
// more than once is a no-op.
func (s *Session) Stop() error {
	mu.Lock()
	defer mu.Unlock()

	if s == nil || s.done {
		return nil
	}
	s.done = true
	active = false

	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
	}
	if s.opts.Block != "" {
		runtime.SetBlockProfileRate(0)
	}
	if s.opts.Mutex != "" {
		runtime.SetMutexProfileFraction(0)
	}

	if s.opts.Heap != "" {
		runtime.GC()
	}
	for _, snap := range []struct{ name, path string }{
		{"heap", s.opts.Heap},
		{"block", s.opts.Block},
		{"mutex", s.opts.Mutex},
	} {
		if snap.path != "" {
			errs = append(errs, writeProfile(snap.name, snap.path))
		}
	}
	return errors.Join(errs...)
}

func writeProfile(name, path string) error {
	p := pprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("unknown profile %q", name)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
