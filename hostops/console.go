package hostops

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/glyphterm/wasm-bridge/bridge"
)

// Console routes the module's console.log/warn/error calls into a zap
// logger. Messages arrive as (ptr, len) pairs into module memory.
type Console struct {
	log *zap.Logger
}

// NewConsole builds a console provider. A nil logger discards everything.
func NewConsole(log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{log: log}
}

func (c *Console) Namespace() string {
	return "console"
}

func (c *Console) Functions() []bridge.HostFunc {
	ptrLen := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	return []bridge.HostFunc{
		{Name: "log", Params: ptrLen, Fn: c.emit(zapcore.InfoLevel)},
		{Name: "warn", Params: ptrLen, Fn: c.emit(zapcore.WarnLevel)},
		{Name: "error", Params: ptrLen, Fn: c.emit(zapcore.ErrorLevel)},
	}
}

func (c *Console) emit(level zapcore.Level) bridge.HostFn {
	return func(ctx context.Context, call *bridge.Call) error {
		msg, err := call.Instance.DecodeString(call.U32(0), call.U32(1))
		if err != nil {
			return err
		}
		if ce := c.log.Check(level, msg); ce != nil {
			ce.Write(zap.String("source", "module"))
		}
		return nil
	}
}

var _ bridge.Host = (*Console)(nil)
