package handle

import (
	"fmt"
	"strconv"

	"github.com/glyphterm/wasm-bridge/errors"
)

// Ref is an integer surrogate for a host value crossing the boundary.
type Ref uint32

// Reserved handles. These are pre-populated at construction and survive Free
// and Reset, so the same value never costs a slot allocation twice.
const (
	// Undefined doubles as the absence sentinel: operations that return a
	// handle use Undefined to signal "nothing".
	Undefined Ref = 0
	Null      Ref = 1
	True      Ref = 2
	False     Ref = 3

	firstDynamic Ref = 4
)

// NullValue is the host representation of the null singleton. Undefined is
// represented as untyped nil, so null needs a distinct marker.
var NullValue nullValue

type nullValue struct{}

func (nullValue) String() string { return "null" }

// SlotSource delegates slot management to the module. A module that tracks
// its own table free list exposes it through a pair of exports; the table
// asks it for fresh indices instead of growing on its own.
type SlotSource interface {
	// AllocSlot returns an unused index at or above the reserved range.
	AllocSlot() (uint32, error)
	// FreeSlot returns an index to the module's free list.
	FreeSlot(idx uint32) error
}

// Table maps handles to host values. The zero value is not usable; call New.
type Table struct {
	slots  []any
	free   []Ref
	source SlotSource
}

// Option configures a Table.
type Option func(*Table)

// WithSlotSource makes the table obtain and return slot indices through src
// instead of its own free list.
func WithSlotSource(src SlotSource) Option {
	return func(t *Table) {
		t.source = src
	}
}

// New creates a table with the reserved singletons in place.
func New(opts ...Option) *Table {
	t := &Table{
		slots: make([]any, firstDynamic, 32),
	}
	t.slots[Null] = NullValue
	t.slots[True] = true
	t.slots[False] = false
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Alloc obtains a fresh handle. The slot is empty until Set stores a value;
// a freed slot is cleared on Free, so a recycled handle never exposes the
// previous occupant.
func (t *Table) Alloc() (Ref, error) {
	if t.source != nil {
		idx, err := t.source.AllocSlot()
		if err != nil {
			return Undefined, errors.Wrap(errors.PhaseBoundary, errors.KindAllocation, err, "module slot alloc")
		}
		if idx < uint32(firstDynamic) {
			return Undefined, errors.InvalidInput(errors.PhaseBoundary,
				fmt.Sprintf("module allocated reserved slot %d", idx))
		}
		ref := Ref(idx)
		t.ensure(ref)
		return ref, nil
	}
	if n := len(t.free); n > 0 {
		ref := t.free[n-1]
		t.free = t.free[:n-1]
		return ref, nil
	}
	t.slots = append(t.slots, nil)
	return Ref(len(t.slots) - 1), nil
}

// Set stores v under ref. Reserved handles are immutable.
func (t *Table) Set(ref Ref, v any) error {
	if ref < firstDynamic {
		return errors.InvalidInput(errors.PhaseBoundary,
			fmt.Sprintf("cannot assign reserved handle %d", ref))
	}
	if int(ref) >= len(t.slots) {
		return errors.NotFound(errors.PhaseBoundary, "handle", refName(ref))
	}
	t.slots[ref] = v
	return nil
}

// Get returns the value under ref. The second result is false when ref was
// never allocated; reserved handles always resolve, with Undefined reading
// as nil.
func (t *Table) Get(ref Ref) (any, bool) {
	if int(ref) >= len(t.slots) {
		return nil, false
	}
	return t.slots[ref], true
}

// Take removes and returns the value under ref, freeing the slot. Taking a
// reserved handle returns its singleton without freeing anything.
func (t *Table) Take(ref Ref) (any, bool) {
	v, ok := t.Get(ref)
	if !ok {
		return nil, false
	}
	t.Free(ref)
	return v, true
}

// Free releases ref for reuse. The slot is cleared immediately. Freeing a
// reserved or unallocated handle is a no-op.
func (t *Table) Free(ref Ref) {
	if ref < firstDynamic || int(ref) >= len(t.slots) {
		return
	}
	t.slots[ref] = nil
	if t.source != nil {
		// Ignore the module's view of its own free list going stale; the
		// cleared slot already guarantees no stale read.
		_ = t.source.FreeSlot(uint32(ref))
		return
	}
	t.free = append(t.free, ref)
}

// Store allocates a handle for v. The singleton values nil, NullValue, true
// and false short-circuit to their reserved handles.
func (t *Table) Store(v any) (Ref, error) {
	switch v {
	case nil:
		return Undefined, nil
	case NullValue:
		return Null, nil
	case true:
		return True, nil
	case false:
		return False, nil
	}
	ref, err := t.Alloc()
	if err != nil {
		return Undefined, err
	}
	t.slots[ref] = v
	return ref, nil
}

// Len reports the table extent, counting reserved and freed slots.
func (t *Table) Len() int {
	return len(t.slots)
}

// Reset drops every dynamic entry and the host free list. Reserved handles
// keep their singletons. Used when the owning instance shuts down so host
// values become collectible.
func (t *Table) Reset() {
	for i := firstDynamic; int(i) < len(t.slots); i++ {
		t.slots[i] = nil
	}
	t.slots = t.slots[:firstDynamic]
	t.free = t.free[:0]
}

func (t *Table) ensure(ref Ref) {
	for int(ref) >= len(t.slots) {
		t.slots = append(t.slots, nil)
	}
}

func refName(ref Ref) string {
	switch ref {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case True:
		return "true"
	case False:
		return "false"
	}
	return "#" + strconv.FormatUint(uint64(ref), 10)
}
