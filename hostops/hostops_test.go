package hostops

import (
	"context"
	"testing"

	"github.com/glyphterm/wasm-bridge/bridge"
)

func newRuntime(t *testing.T) (context.Context, *bridge.Runtime) {
	t.Helper()
	ctx := context.Background()
	rt, err := bridge.New(ctx)
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return ctx, rt
}

func instantiate(t *testing.T, ctx context.Context, rt *bridge.Runtime, bin []byte) *bridge.Instance {
	t.Helper()
	mod, err := rt.CompileBytes(ctx, bin)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst
}

func readGlobal(t *testing.T, inst *bridge.Instance, name string) uint64 {
	t.Helper()
	g := inst.Module().ExportedGlobal(name)
	if g == nil {
		t.Fatalf("global %q not exported", name)
	}
	return g.Get()
}
