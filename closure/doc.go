// Package closure manages host-invocable wrappers around module-owned
// callback environments.
//
// A module hands the bridge an environment pair (a, b), an entry point and a
// destructor. The wrapper produced here is what the host actually calls: it
// reference-counts the environment across invocations so the destructor runs
// exactly once, after the last use. Two flavors exist. Wrap produces a shared
// wrapper that tolerates nested reinvocation while a call is still on the
// stack. WrapMut produces an exclusive wrapper that clears its environment
// slot for the duration of a call, so reentry and use-after-destroy fail
// instead of aliasing module state.
//
// The count starts at one, held by the module itself. Unref drops that
// reference when the module releases the callback. A weak GC backstop can be
// attached so wrappers that become unreachable without an explicit release
// still retire their destructor; it is leak prevention, never the primary
// release path, and it is detached the moment the wrapper dies properly.
package closure
