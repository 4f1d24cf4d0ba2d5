package bridge

import (
	"context"

	"github.com/glyphterm/wasm-bridge/closure"
	"github.com/glyphterm/wasm-bridge/errors"
)

// DeferredState tracks where a deferred result is in its life.
type DeferredState uint8

const (
	DeferredPending DeferredState = iota
	DeferredResolved
	DeferredRejected
)

// Completion codes delivered in the high half of the callback argument.
// The low half carries the resolved payload; rejections leave it zero and
// park the error in the channel for the module to take.
const (
	CompletionResolved uint64 = 1
	CompletionRejected uint64 = 2
)

// Deferred is the host side of an operation that completes after the call
// that started it has returned. The host op stores it in the handle table
// and returns the handle immediately; completion fires the module callback
// once, on the owning goroutine. A module that unrefs the callback first
// has cancelled: completion then just records the state.
type Deferred struct {
	inst  *Instance
	cb    *closure.Func
	state DeferredState
	value uint32
}

// NewDeferred pairs a pending result with the callback that will consume it.
func (i *Instance) NewDeferred(cb *closure.Func) *Deferred {
	return &Deferred{inst: i, cb: cb}
}

func (d *Deferred) State() DeferredState {
	return d.state
}

// Value returns the resolved payload; zero until resolution.
func (d *Deferred) Value() uint32 {
	return d.value
}

// Resolve completes the deferred with a payload and fires the callback.
// Completing twice is a host bug and is rejected.
func (d *Deferred) Resolve(ctx context.Context, value uint32) error {
	if d.state != DeferredPending {
		return errors.InvalidInput(errors.PhaseHost, "deferred result completed twice")
	}
	d.state = DeferredResolved
	d.value = value
	return d.fire(ctx, CompletionResolved<<32|uint64(value))
}

// Reject completes the deferred with an error. The error goes through the
// pending-error channel; the callback receives only the rejection code and
// takes the error itself.
func (d *Deferred) Reject(ctx context.Context, cause error) error {
	if d.state != DeferredPending {
		return errors.InvalidInput(errors.PhaseHost, "deferred result completed twice")
	}
	d.state = DeferredRejected
	d.inst.channel.Capture(cause)
	return d.fire(ctx, CompletionRejected<<32)
}

func (d *Deferred) fire(ctx context.Context, arg uint64) error {
	if d.cb == nil || d.cb.Destroyed() {
		return nil
	}
	d.inst.alloc.setContext(ctx)
	_, err := d.cb.Call(arg)
	return err
}
