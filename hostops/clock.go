package hostops

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/glyphterm/wasm-bridge/bridge"
	"github.com/glyphterm/wasm-bridge/closure"
	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/handle"
)

// Clock provides now() and schedule() under the cooperative model: time
// only moves when the embedder pumps it with Advance, which fires due
// timers on the calling goroutine. A module cancels a timer by releasing
// its callback before the deadline; firing then skips it.
type Clock struct {
	elapsed time.Duration
	seq     uint64
	timers  []*timer
}

type timer struct {
	due time.Duration
	seq uint64
	d   *bridge.Deferred
}

func NewClock() *Clock {
	return &Clock{}
}

// Now reports the pumped time since the clock's origin.
func (c *Clock) Now() time.Duration {
	return c.elapsed
}

// PendingTimers reports how many timers have not fired yet.
func (c *Clock) PendingTimers() int {
	return len(c.timers)
}

// Advance moves the clock forward and fires every timer that came due,
// in deadline order. The first firing error is returned after the rest
// have still been given their chance.
func (c *Clock) Advance(ctx context.Context, d time.Duration) error {
	c.elapsed += d

	var due, rest []*timer
	for _, t := range c.timers {
		if t.due <= c.elapsed {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})

	var firstErr error
	for _, t := range due {
		payload := uint32(t.due / time.Millisecond)
		if err := t.d.Resolve(ctx, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Clock) Namespace() string {
	return "clock"
}

func (c *Clock) Functions() []bridge.HostFunc {
	i32 := api.ValueTypeI32
	f64 := api.ValueTypeF64
	return []bridge.HostFunc{
		{Name: "now", Results: []api.ValueType{f64}, Fn: c.now},
		{Name: "schedule", Params: []api.ValueType{f64, i32}, Results: []api.ValueType{i32}, Fn: c.schedule},
	}
}

// now() -> elapsed milliseconds as f64, fractional part included.
func (c *Clock) now(ctx context.Context, call *bridge.Call) error {
	call.SetF64(0, float64(c.elapsed)/float64(time.Millisecond))
	return nil
}

// schedule(delay_ms, cb) -> deferred handle. The callback fires once with
// the deadline's millisecond timestamp as payload.
func (c *Clock) schedule(ctx context.Context, call *bridge.Call) error {
	delay := call.F64(0)
	if delay < 0 {
		delay = 0
	}
	ref := handle.Ref(call.U32(1))
	v, ok := call.Instance.Table().Get(ref)
	if !ok {
		return errors.NotFound(errors.PhaseBoundary, "callback handle", strconv.FormatUint(uint64(ref), 10))
	}
	f, ok := v.(*closure.Func)
	if !ok {
		return errors.InvalidInput(errors.PhaseBoundary, "schedule expects a callback handle")
	}

	d := call.Instance.NewDeferred(f)
	dref, err := call.Instance.Table().Store(d)
	if err != nil {
		return err
	}
	c.seq++
	c.timers = append(c.timers, &timer{
		due: c.elapsed + time.Duration(delay*float64(time.Millisecond)),
		seq: c.seq,
		d:   d,
	})
	call.SetU32(0, uint32(dref))
	return nil
}

var _ bridge.Host = (*Clock)(nil)
