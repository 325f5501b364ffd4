//go:build !profile

package prof

import (
	"fmt"

	"github.com/ardnew/xspi/pkg"
)

// Session is a running profile capture. Without the "profile" build tag it
// does nothing.
type Session struct{}

// Start returns a no-op session for empty opts and [pkg.ErrNotSupported]
// otherwise.
func Start(opts Options) (*Session, error) {
	if opts.Enabled() {
		return nil, fmt.Errorf("profiling requires the profile build tag: %w", pkg.ErrNotSupported)
	}
	return &Session{}, nil
}

// Stop does nothing.
func (s *Session) Stop() error { return nil }
