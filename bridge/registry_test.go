package bridge

import (
	"context"
	"testing"

	bridgeerrors "github.com/glyphterm/wasm-bridge/errors"
)

type fakeHost struct {
	ns  string
	fns []HostFunc
}

func (h *fakeHost) Namespace() string     { return h.ns }
func (h *fakeHost) Functions() []HostFunc { return h.fns }

func nopFn(ctx context.Context, call *Call) error { return nil }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterFunc("env", "ping", nopFn, i32Params(1), nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	fn, ok := r.lookup("env", "ping")
	if !ok {
		t.Fatal("registered function not found")
	}
	if fn.Name != "ping" || len(fn.Params) != 1 {
		t.Fatalf("lookup returned %q with %d params", fn.Name, len(fn.Params))
	}
	if _, ok := r.lookup("env", "pong"); ok {
		t.Fatal("lookup found an unregistered function")
	}
	if _, ok := r.lookup("sys", "ping"); ok {
		t.Fatal("lookup found an unregistered namespace")
	}
}

func TestRegistry_RegisterHost(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{ns: "env", fns: []HostFunc{
		{Name: "beta", Fn: nopFn},
		{Name: "alpha", Fn: nopFn},
	}}
	if err := r.RegisterHost(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterFunc("sys", "ping", nopFn, nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := r.namespaces(); len(got) != 2 || got[0] != "env" || got[1] != "sys" {
		t.Fatalf("namespaces %v, want [env sys]", got)
	}
	fns := r.functions("env")
	if len(fns) != 2 || fns[0].Name != "alpha" || fns[1].Name != "beta" {
		t.Fatalf("functions out of order: %+v", fns)
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	hits := ""
	first := func(ctx context.Context, call *Call) error { hits += "1"; return nil }
	second := func(ctx context.Context, call *Call) error { hits += "2"; return nil }

	if err := r.RegisterFunc("env", "ping", first, nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterFunc("env", "ping", second, nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	fn, ok := r.lookup("env", "ping")
	if !ok {
		t.Fatal("function not found")
	}
	if err := fn.Fn(context.Background(), &Call{}); err != nil {
		t.Fatalf("call: %v", err)
	}
	if hits != "2" {
		t.Fatalf("handler trace %q, want the later registration", hits)
	}
}

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	tests := []struct {
		name string
		do   func(r *Registry) error
	}{
		{"empty namespace", func(r *Registry) error {
			return r.RegisterFunc("", "ping", nopFn, nil, nil)
		}},
		{"reserved namespace", func(r *Registry) error {
			return r.RegisterFunc(IntrinsicNamespace, "ping", nopFn, nil, nil)
		}},
		{"reserved namespace via host", func(r *Registry) error {
			return r.RegisterHost(&fakeHost{ns: IntrinsicNamespace})
		}},
		{"empty function name", func(r *Registry) error {
			return r.RegisterFunc("env", "", nopFn, nil, nil)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wantKind(t, tc.do(NewRegistry()), bridgeerrors.KindInvalidInput)
		})
	}

	t.Run("nil handler", func(t *testing.T) {
		err := NewRegistry().RegisterFunc("env", "ping", nil, nil, nil)
		wantKind(t, err, bridgeerrors.KindRegistration)
	})
}
