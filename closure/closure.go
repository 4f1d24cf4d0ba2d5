package closure

import (
	"runtime"
	"sync/atomic"

	"github.com/glyphterm/wasm-bridge/errors"
)

// Env identifies a module-owned callback: the environment pair (A, B), the
// entry point Fn and the destructor Dtor, all indices into module tables.
type Env struct {
	Fn   uint32
	A    uint32
	B    uint32
	Dtor uint32
}

// InvokeFunc drives the module's callback entry point.
type InvokeFunc func(fn, a, b uint32, arg uint64) (uint64, error)

// DestroyFunc drives the module's destructor for a dead environment.
type DestroyFunc func(dtor, a, b uint32) error

// RetireFunc accepts a destructor that could not be run in place. It is
// called from the GC backstop on an arbitrary goroutine, so it must only
// record the triple for the bridge to run at its next module crossing,
// never touch the module directly.
type RetireFunc func(dtor, a, b uint32)

// Hooks connects a wrapper to its module. Retire is optional; setting it
// arms the GC backstop.
type Hooks struct {
	Invoke  InvokeFunc
	Destroy DestroyFunc
	Retire  RetireFunc
}

// state is shared between the wrapper and the GC backstop. It must never
// point back at the Func, or the backstop would keep it alive.
type state struct {
	env    Env
	cnt    int
	shared bool

	// dead is the only field touched off the owning goroutine: the GC
	// backstop claims it before retiring the destructor.
	dead atomic.Bool

	invoke  InvokeFunc
	destroy DestroyFunc
	retire  RetireFunc
}

// Func is a host-invocable view of one module callback.
type Func struct {
	st      *state
	cleanup runtime.Cleanup
	gc      bool
}

// Wrap produces a shared wrapper. Invocations may nest; the count keeps the
// environment alive until the outermost call unwinds.
func Wrap(env Env, hooks Hooks) *Func {
	return newFunc(env, hooks, true)
}

// WrapMut produces an exclusive wrapper. The environment slot is cleared
// while a call is in flight, so reinvoking from inside the callback is a
// caller error and reports as such.
func WrapMut(env Env, hooks Hooks) *Func {
	return newFunc(env, hooks, false)
}

func newFunc(env Env, hooks Hooks, shared bool) *Func {
	st := &state{
		env:     env,
		cnt:     1,
		shared:  shared,
		invoke:  hooks.Invoke,
		destroy: hooks.Destroy,
		retire:  hooks.Retire,
	}
	f := &Func{st: st}
	if hooks.Retire != nil {
		f.cleanup = runtime.AddCleanup(f, retireState, st)
		f.gc = true
	}
	return f
}

// retireState runs on the cleanup goroutine when a wrapper was dropped
// without an explicit release.
func retireState(st *state) {
	if st.dead.CompareAndSwap(false, true) {
		st.retire(st.env.Dtor, st.env.A, st.env.B)
	}
}

// Call invokes the callback with one packed scalar argument. When the last
// reference drains during the unwind, the destructor runs before Call
// returns.
func (f *Func) Call(arg uint64) (ret uint64, err error) {
	st := f.st
	if st.env.A == 0 {
		return 0, errDead()
	}
	st.cnt++
	a := st.env.A
	if !st.shared {
		st.env.A = 0
	}
	defer func() {
		st.cnt--
		if st.cnt == 0 {
			st.env.A = 0
			if derr := f.destroyNow(a); derr != nil && err == nil {
				err = derr
			}
		} else if !st.shared {
			st.env.A = a
		}
	}()
	return st.invoke(st.env.Fn, a, st.env.B, arg)
}

// Unref drops the module's own reference. A true result means the wrapper
// fully died with no call in flight; the module reclaims the environment
// itself in that case, so the destructor is not driven from here. With
// calls still on the stack the wrapper stays alive and the innermost
// unwind finishes the job.
func (f *Func) Unref() bool {
	st := f.st
	if st.dead.Load() {
		return false
	}
	st.cnt--
	if st.cnt != 0 {
		return false
	}
	st.env.A = 0
	st.dead.Store(true)
	f.stopCleanup()
	return true
}

// Destroyed reports whether the environment has been released.
func (f *Func) Destroyed() bool {
	return f.st.dead.Load()
}

func (f *Func) destroyNow(a uint32) error {
	st := f.st
	if !st.dead.CompareAndSwap(false, true) {
		return nil
	}
	f.stopCleanup()
	if st.destroy == nil {
		return nil
	}
	return st.destroy(st.env.Dtor, a, st.env.B)
}

func (f *Func) stopCleanup() {
	if f.gc {
		f.cleanup.Stop()
	}
}

func errDead() *errors.Error {
	return errors.New(errors.PhaseCall, errors.KindClosed).
		Detail("closure invoked recursively or after being destroyed").
		Build()
}
