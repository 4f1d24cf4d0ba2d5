package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/internal/wasmgen"
)

// Config holds configuration for runtime creation.
type Config struct {
	// MemoryLimitPages caps memory per instance in 64 KiB pages.
	// 0 means the wazero default (65536 pages = 4 GiB).
	MemoryLimitPages uint32
}

// Runtime owns the wazero engine, the host operation registry and the set
// of live instances.
type Runtime struct {
	runtime  wazero.Runtime
	registry *Registry

	// instances maps a calling module back to its bridge instance so host
	// functions can reach the right boundary state.
	instMu    sync.RWMutex
	instances map[api.Module]*Instance
}

// New creates a runtime with default configuration.
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a runtime with custom configuration.
func NewWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Runtime{
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		registry:  NewRegistry(),
		instances: make(map[api.Module]*Instance),
	}, nil
}

// Registry exposes the host operation registry.
func (r *Runtime) Registry() *Registry {
	return r.registry
}

// RegisterHost registers a namespace of host operations.
// Must be called before instantiating modules that import them.
func (r *Runtime) RegisterHost(h Host) error {
	return r.registry.RegisterHost(h)
}

// RegisterFunc registers a single host operation.
func (r *Runtime) RegisterFunc(namespace, name string, fn HostFn, params, results []api.ValueType) error {
	return r.registry.RegisterFunc(namespace, name, fn, params, results)
}

// CompileBytes compiles a binary module.
func (r *Runtime) CompileBytes(ctx context.Context, wasm []byte) (*Module, error) {
	if !wasmgen.IsModule(wasm) {
		return nil, errors.InvalidInput(errors.PhaseLoad, "not a WebAssembly module")
	}
	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &Module{runtime: r, compiled: compiled}, nil
}

// CompileReader compiles a module from a streaming source.
func (r *Runtime) CompileReader(ctx context.Context, src io.Reader) (*Module, error) {
	wasm, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Load("read module source", err)
	}
	return r.CompileBytes(ctx, wasm)
}

// Precompiled adopts an already-compiled module, for callers that manage
// compilation caches themselves.
func (r *Runtime) Precompiled(compiled wazero.CompiledModule) *Module {
	return &Module{runtime: r, compiled: compiled}
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

func (r *Runtime) trackInstance(mod api.Module, inst *Instance) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	r.instances[mod] = inst
}

func (r *Runtime) forgetInstance(mod api.Module) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	delete(r.instances, mod)
}

// instanceFor resolves the bridge instance behind a calling module.
func (r *Runtime) instanceFor(mod api.Module) *Instance {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	return r.instances[mod]
}
