package bridge

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/glyphterm/wasm-bridge/errors"
)

// Call carries one boundary invocation into a host function. Stack holds the
// flat parameters on entry and receives the results in place, wazero style.
type Call struct {
	Instance *Instance
	Stack    []uint64
}

// U32 reads parameter i as an unsigned 32-bit value.
func (c *Call) U32(i int) uint32 {
	return uint32(c.Stack[i])
}

// U64 reads parameter i as an unsigned 64-bit value.
func (c *Call) U64(i int) uint64 {
	return c.Stack[i]
}

// F64 reads parameter i as a float64.
func (c *Call) F64(i int) float64 {
	return api.DecodeF64(c.Stack[i])
}

// SetU32 writes result slot i.
func (c *Call) SetU32(i int, v uint32) {
	c.Stack[i] = uint64(v)
}

// SetU64 writes result slot i.
func (c *Call) SetU64(i int, v uint64) {
	c.Stack[i] = v
}

// SetF64 writes result slot i.
func (c *Call) SetF64(i int, v float64) {
	c.Stack[i] = api.EncodeF64(v)
}

// HostFn handles one boundary call. A returned error is captured into the
// calling instance's error channel and the call produces neutral results;
// it does not abort the module.
type HostFn func(ctx context.Context, call *Call) error

// HostFunc describes one boundary function: a flat numeric signature plus
// its handler.
type HostFunc struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Fn      HostFn
}

// Host contributes a namespace of boundary functions to the import surface.
type Host interface {
	Namespace() string
	Functions() []HostFunc
}

// Registry collects host operations by namespace. Register everything before
// the first Instantiate; host modules are installed into the runtime once
// and later registrations will not reach already-instantiated namespaces.
type Registry struct {
	funcs map[string]map[string]HostFunc
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]map[string]HostFunc),
	}
}

// RegisterHost registers every function the host declares under its
// namespace. A function registered twice keeps the later definition.
func (r *Registry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if ns == IntrinsicNamespace {
		return errors.InvalidInput(errors.PhaseHost, "namespace \""+IntrinsicNamespace+"\" is reserved")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fn := range h.Functions() {
		if err := r.put(ns, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFunc registers a single boundary function.
func (r *Registry) RegisterFunc(namespace, name string, fn HostFn, params, results []api.ValueType) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if namespace == IntrinsicNamespace {
		return errors.InvalidInput(errors.PhaseHost, "namespace \""+IntrinsicNamespace+"\" is reserved")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.put(namespace, HostFunc{
		Name:    name,
		Params:  params,
		Results: results,
		Fn:      fn,
	})
}

// put stores one function; callers hold the lock.
func (r *Registry) put(ns string, fn HostFunc) error {
	if fn.Name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	if fn.Fn == nil {
		return errors.Registration(errors.PhaseHost, ns, fn.Name,
			errors.InvalidInput(errors.PhaseHost, "handler cannot be nil"))
	}
	if r.funcs[ns] == nil {
		r.funcs[ns] = make(map[string]HostFunc)
	}
	r.funcs[ns][fn.Name] = fn
	return nil
}

// lookup finds a registered function.
func (r *Registry) lookup(namespace, name string) (HostFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fns, ok := r.funcs[namespace]
	if !ok {
		return HostFunc{}, false
	}
	fn, ok := fns[name]
	return fn, ok
}

// namespaces returns the registered namespaces in stable order.
func (r *Registry) namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// functions returns one namespace's functions in stable order.
func (r *Registry) functions(namespace string) []HostFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fns := r.funcs[namespace]
	out := make([]HostFunc, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
