package host

import (
	"context"
	"sync"

	"github.com/ardnew/xspi/pkg"
)

// completion is the transfer-complete event shared by the interrupt handler
// and the synchronous DMA poll. Whichever observes the status bit first
// fires it; the other sees it as no longer pending.
type completion struct {
	mu      sync.Mutex
	pending bool
	owed    *delivery // set while an asynchronous transfer awaits completion
	done    chan struct{}
}

// delivery is the callback owed to an asynchronous transfer. It is captured
// when the transfer starts so a later transfer cannot replace it.
type delivery struct {
	cb    Callback
	cbctx *CallbackContext
	ev    Event
}

// run resolves the owed context with err and invokes the callback.
func (d *delivery) run(err error) {
	ev := d.ev
	ev.Status = err
	deliver(d.cb, d.cbctx, ev)
}

// arm marks a transfer in flight and replaces the wake channel. owed is nil
// for a synchronous transfer.
func (c *completion) arm(owed *delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = true
	c.owed = owed
	c.done = make(chan struct{})
}

// fire clears the pending flag and wakes any waiter. It reports whether the
// event was pending and returns the delivery owed to an asynchronous
// transfer, which the caller must run.
func (c *completion) fire() (fired bool, owed *delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return false, nil
	}
	c.pending = false
	close(c.done)
	owed, c.owed = c.owed, nil
	return true, owed
}

// cancel abandons a pending event without waking waiters and returns the
// delivery it owed, if any.
func (c *completion) cancel() *delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	owed := c.owed
	c.owed = nil
	return owed
}

// wait returns a channel closed when the armed event fires. A never-armed
// event returns a closed channel.
func (c *completion) wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		c.done = make(chan struct{})
		close(c.done)
	}
	return c.done
}

func (c *completion) isPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// notifying reports whether an asynchronous transfer is awaiting completion.
func (c *completion) notifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending && c.owed != nil
}

// Event describes a controller event delivered to a [Callback].
type Event struct {
	Type        EventType
	Device      *DeviceID
	PacketIndex int   // Index of the packet that completed
	Status      error // nil on success
}

// Callback is invoked when an asynchronous transfer completes. It runs on
// the goroutine that observed completion and must not block. A completion
// still outstanding when the next transfer starts is delivered by that
// transfer's caller while it holds the transfer token, so a callback must not
// start a transfer of its own.
type Callback func(*CallbackContext)

// CallbackContext carries the state of one asynchronous transfer between
// its submission and its callback.
//
// A context is pending from submission until the completion is observed.
// Callers may poll [CallbackContext.Pending], select on
// [CallbackContext.Done], or block in [CallbackContext.Wait].
type CallbackContext struct {
	// Event is filled in before the callback runs.
	Event Event
	// UserData is passed through untouched.
	UserData any

	mu     sync.Mutex
	status pkg.TransferStatus
	err    error
	done   chan struct{}
}

// NewCallbackContext returns a resolved context carrying userData.
func NewCallbackContext(userData any) *CallbackContext {
	done := make(chan struct{})
	close(done)
	return &CallbackContext{
		UserData: userData,
		status:   pkg.TransferStatusSuccess,
		done:     done,
	}
}

// arm marks the context pending for a new transfer.
func (cc *CallbackContext) arm(ev Event) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.Event = ev
	cc.status = pkg.TransferStatusPending
	cc.err = nil
	cc.done = make(chan struct{})
}

// resolve records the outcome and wakes waiters. Resolving a context that is
// not pending has no effect.
func (cc *CallbackContext) resolve(err error) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.status != pkg.TransferStatusPending {
		return false
	}
	cc.Event.Status = err
	cc.err = err
	if err != nil {
		cc.status = pkg.TransferStatusError
	} else {
		cc.status = pkg.TransferStatusSuccess
	}
	close(cc.done)
	return true
}

// Pending reports whether the transfer has not completed yet.
func (cc *CallbackContext) Pending() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.status == pkg.TransferStatusPending
}

// Done returns a channel closed when the transfer completes.
func (cc *CallbackContext) Done() <-chan struct{} {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.done
}

// Wait blocks until the transfer completes or ctx ends, and returns the
// transfer error.
func (cc *CallbackContext) Wait(ctx context.Context) error {
	select {
	case <-cc.Done():
		return cc.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the transfer status.
func (cc *CallbackContext) Status() pkg.TransferStatus {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.status
}

// Err returns the transfer error, or the status error while pending.
func (cc *CallbackContext) Err() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.err != nil {
		return cc.err
	}
	return cc.status.Error()
}
