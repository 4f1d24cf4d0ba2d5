package bridge

import (
	"go.uber.org/zap"

	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/handle"
)

// Channel is the single-slot rendezvous for boundary failures. A host
// operation that fails has its error stored in the handle table and the
// resulting handle recorded as pending; the module consumes it immediately
// after the call that produced it. Exactly one error is pending at a time.
// A second failure before consumption overwrites the first; host calls are
// not reentrant under the cooperative scheduling contract, so the collision
// is deliberate last-write-wins, not a queue.
type Channel struct {
	table   *handle.Table
	pending handle.Ref
}

// NewChannel binds a channel to the table that will own captured values.
func NewChannel(table *handle.Table) *Channel {
	return &Channel{table: table, pending: handle.Undefined}
}

// Capture stores v as the pending error and returns its handle. An
// unconsumed previous error is dropped from the table before the overwrite.
func (c *Channel) Capture(v any) handle.Ref {
	if c.pending != handle.Undefined {
		debugf("pending error %d overwritten before consumption", uint32(c.pending))
		c.table.Free(c.pending)
	}
	ref, err := c.table.Store(v)
	if err != nil {
		// Slot exhaustion while reporting a failure; nothing pending.
		Logger().Error("failed to store captured error", zap.Error(err))
		c.pending = handle.Undefined
		return handle.Undefined
	}
	c.pending = ref
	return ref
}

// Take consumes the pending error handle, leaving the slot empty.
// Undefined means no error was pending. The table entry survives until the
// module releases it.
func (c *Channel) Take() handle.Ref {
	ref := c.pending
	c.pending = handle.Undefined
	return ref
}

// TakeError consumes the pending error and resolves it to a Go error,
// removing it from the table. It returns nil when nothing is pending.
func (c *Channel) TakeError() error {
	ref := c.Take()
	if ref == handle.Undefined {
		return nil
	}
	v, ok := c.table.Take(ref)
	if !ok {
		return nil
	}
	if err, isErr := v.(error); isErr {
		return err
	}
	return errors.New(errors.PhaseBoundary, errors.KindTrap).
		Value(v).
		Detail("host operation raised non-error value").
		Build()
}

// Pending reports whether an unconsumed error is waiting.
func (c *Channel) Pending() bool {
	return c.pending != handle.Undefined
}

// Reset drops any pending error without consuming it.
func (c *Channel) Reset() {
	if c.pending != handle.Undefined {
		c.table.Free(c.pending)
		c.pending = handle.Undefined
	}
}
