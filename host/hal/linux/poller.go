//go:build linux

package linux

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ardnew/xspi/pkg"
)

// =============================================================================
// Poller
// =============================================================================

// poller waits for a single file descriptor to become readable. A wake
// eventfd registered alongside it lets context cancellation and close
// interrupt a blocked wait.
type poller struct {
	fd     int // Watched descriptor
	epfd   int // epoll instance
	wakefd int // eventfd for waking the poller
	closed atomic.Bool
}

// newPoller creates a poller watching fd for input.
func newPoller(fd int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	p := &poller{fd: fd, epfd: epfd, wakefd: wakefd}
	for _, f := range []int{fd, wakefd} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(f)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, f, &ev); err != nil {
			unix.Close(wakefd)
			unix.Close(epfd)
			return nil, err
		}
	}
	return p, nil
}

// close wakes any waiter and releases the epoll and eventfd descriptors.
// The watched descriptor is left open.
func (p *poller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.wake()
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}

// wake signals the poller to wake up.
func (p *poller) wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wakefd, buf[:])
	return err
}

// wait blocks until the watched descriptor is readable, ctx ends or the
// poller is closed.
func (p *poller) wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { p.wake() })
	defer stop()

	var events [MaxEpollEvents]unix.EpollEvent
	for {
		if p.closed.Load() {
			return pkg.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.EpollWait(p.epfd, events[:], -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if p.closed.Load() {
				return pkg.ErrClosed
			}
			return err
		}

		ready := false
		for i := 0; i < n; i++ {
			switch int(events[i].Fd) {
			case p.wakefd:
				// Drain the eventfd
				var buf [8]byte
				unix.Read(p.wakefd, buf[:])
			case p.fd:
				ready = true
			}
		}
		if ready {
			return nil
		}
	}
}
