package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ardnew/xspi/pkg"
)

// transferContext arbitrates exclusive use of the controller. The token is a
// weight-1 semaphore; mu guards the ownership record so the token state and
// the owner always change together.
type transferContext struct {
	token *semaphore.Weighted
	irq   *completion

	mu       sync.Mutex
	held     bool
	owner    *DeviceID
	snapshot Transfer
	hasXfer  bool

	// Callback context of the last transfer, waited on by a mismatched
	// successor while that transfer is in flight.
	cbctx *CallbackContext

	// Callback installed by RegisterCallback, used by later transfers.
	registered    Callback
	registeredCtx *CallbackContext
}

func newTransferContext(irq *completion) *transferContext {
	return &transferContext{
		token: semaphore.NewWeighted(1),
		irq:   irq,
	}
}

// lock takes ownership of the controller for dev and xfer.
//
// When the token is already held by dev and mustWait is false, lock returns
// without taking it again and the returned release is a no-op. Otherwise the
// token is taken immediately (zero xfer timeout) or within the xfer timeout.
//
// reconfigure reports whether the Transfer Mode phase lengths must be
// reprogrammed. It is false when an asynchronous transfer with identical
// phase lengths is still in flight.
func (tc *transferContext) lock(ctx context.Context, dev *DeviceID, xfer *Transfer,
	cbctx *CallbackContext, mustWait bool,
) (release func(), reconfigure bool, err error) {
	tc.mu.Lock()
	if tc.held && !mustWait && tc.owner == dev {
		tc.mu.Unlock()
		return func() {}, false, nil
	}
	tc.mu.Unlock()

	if err := tc.acquire(ctx, xfer.Timeout); err != nil {
		return nil, false, err
	}

	tc.mu.Lock()
	tc.held = true
	reconfigure = true
	inFlight := tc.hasXfer && tc.snapshot.Async && tc.irq.isPending()
	prev, prevCtx := tc.snapshot, tc.cbctx
	tc.mu.Unlock()

	if inFlight {
		switch {
		case prev.samePhases(xfer):
			reconfigure = false
		case prevCtx != nil:
			if err := waitCallback(ctx, prevCtx, xfer.Timeout); err != nil {
				tc.release()
				return nil, false, err
			}
		default:
			tc.release()
			return nil, false, fmt.Errorf("asynchronous transfer in flight: %w", pkg.ErrIO)
		}
	}

	tc.mu.Lock()
	tc.owner = dev
	tc.snapshot = *xfer
	tc.hasXfer = true
	tc.cbctx = cbctx
	tc.mu.Unlock()

	return tc.release, reconfigure, nil
}

func (tc *transferContext) acquire(ctx context.Context, timeout time.Duration) error {
	if tc.token.TryAcquire(1) {
		return nil
	}
	if timeout <= 0 {
		return fmt.Errorf("controller in use: %w", pkg.ErrBusy)
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tc.token.Acquire(wctx, 1); err != nil {
		return fmt.Errorf("controller in use after %v: %w", timeout, pkg.ErrBusy)
	}
	return nil
}

func waitCallback(ctx context.Context, cc *CallbackContext, timeout time.Duration) error {
	if !cc.Pending() {
		return nil
	}
	if timeout <= 0 {
		return fmt.Errorf("asynchronous transfer pending: %w", pkg.ErrBusy)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-cc.Done():
		return nil
	case <-t.C:
	case <-ctx.Done():
	}
	return fmt.Errorf("asynchronous transfer pending after %v: %w", timeout, pkg.ErrBusy)
}

// release clears ownership and returns the token. The in-flight snapshot
// stays recorded for the next lock.
func (tc *transferContext) release() {
	tc.mu.Lock()
	tc.held = false
	tc.owner = nil
	tc.mu.Unlock()
	tc.token.Release(1)
}

// hold takes the token without recording an owner. It never waits.
func (tc *transferContext) hold() error {
	if !tc.token.TryAcquire(1) {
		return fmt.Errorf("controller in use: %w", pkg.ErrBusy)
	}
	tc.mu.Lock()
	tc.held = true
	tc.mu.Unlock()
	return nil
}

// holdWait is hold that blocks until ctx ends.
func (tc *transferContext) holdWait(ctx context.Context) error {
	if err := tc.token.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("controller in use: %w", pkg.ErrBusy)
	}
	tc.mu.Lock()
	tc.held = true
	tc.mu.Unlock()
	return nil
}

func (tc *transferContext) unhold() {
	tc.release()
}

func (tc *transferContext) inProgress() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.held
}

func (tc *transferContext) currentOwner() *DeviceID {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.owner
}

func (tc *transferContext) register(cb Callback, cbctx *CallbackContext) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.registered = cb
	tc.registeredCtx = cbctx
}

func (tc *transferContext) registration() (Callback, *CallbackContext) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.registered, tc.registeredCtx
}
