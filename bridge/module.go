package bridge

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/glyphterm/wasm-bridge/errors"
)

// Module is a compiled module awaiting instantiation.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
}

// ExportNames lists the module's exports, for inspection tooling.
func (m *Module) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

// CheckImports verifies that every function the module imports is satisfied
// by the intrinsic namespace or a registered host operation. All unresolved
// imports are reported at once.
func (m *Module) CheckImports() error {
	var missing []string
	for _, fn := range m.compiled.ImportedFunctions() {
		namespace, name, ok := fn.Import()
		if !ok {
			continue
		}
		if namespace == IntrinsicNamespace {
			if isIntrinsic(name) {
				continue
			}
			missing = append(missing, namespace+"#"+name)
			continue
		}
		if _, found := m.runtime.registry.lookup(namespace, name); !found {
			missing = append(missing, namespace+"#"+name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingImportsError(missing)
	}
	return nil
}

// Instantiate creates a bootstrapped instance: the import object is built
// from the intrinsics plus registered host operations, the export surface is
// captured, views start unconstructed and the module's start routine runs
// exactly once.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	if err := m.CheckImports(); err != nil {
		return nil, err
	}
	if err := m.runtime.installHostModules(ctx, m.compiled); err != nil {
		return nil, err
	}

	// Anonymous name allows parallel instantiation; the start routine is
	// driven by the bridge itself so it can reset views first.
	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	mod, err := m.runtime.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst, err := newInstance(ctx, m.runtime, mod)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	m.runtime.trackInstance(mod, inst)

	if err := inst.Start(ctx); err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}
	return inst, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
