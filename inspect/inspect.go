package inspect

import (
	"context"

	"github.com/glyphterm/wasm-bridge/bridge"
)

// Exported debug entry points, as emitted by the terminal module.
const (
	exportGlyphCount    = "debug_glyph_count"
	exportGlyphID       = "debug_glyph_id"
	exportGlyphSymbol   = "debug_glyph_symbol"
	exportTerminalSize  = "debug_terminal_size"
	exportCanvasSize    = "debug_canvas_size"
	exportCellSize      = "debug_cell_size"
	exportMissingGlyphs = "debug_missing_glyphs"
)

// missingGlyph is the module's not-found sentinel for glyph lookups.
const missingGlyph uint32 = 0xffff_ffff

// Retptr frames are uniformly 16 bytes; the widest result is two f64s.
const frameSize = 16

// TerminalSize is the terminal geometry in character cells.
type TerminalSize struct {
	Cols uint32
	Rows uint32
}

// CanvasSize is the rendered canvas geometry in pixels.
type CanvasSize struct {
	Width  uint32
	Height uint32
}

// CellSize is the geometry of one character cell in pixels. Fractional
// sizes happen under display scaling.
type CellSize struct {
	Width  float64
	Height float64
}

// Facade exposes the module's debug exports as typed accessors.
type Facade struct {
	inst *bridge.Instance
}

// New wraps an instantiated module.
func New(inst *bridge.Instance) *Facade {
	return &Facade{inst: inst}
}

// GlyphCount returns how many glyphs the module's font atlas carries.
func (f *Facade) GlyphCount(ctx context.Context) (uint32, error) {
	results, err := f.inst.Call(ctx, exportGlyphCount)
	if err != nil {
		return 0, err
	}
	return uint32(results[0]), nil
}

// GlyphID resolves a codepoint to its glyph index. ok is false when the
// atlas has no glyph for the symbol.
func (f *Facade) GlyphID(ctx context.Context, symbol rune) (uint32, bool, error) {
	results, err := f.inst.Call(ctx, exportGlyphID, uint64(uint32(symbol)))
	if err != nil {
		return 0, false, err
	}
	id := uint32(results[0])
	if id == missingGlyph {
		return 0, false, nil
	}
	return id, true, nil
}

// Symbol resolves a glyph index back to its codepoint. ok is false when the
// index is outside the atlas.
func (f *Facade) Symbol(ctx context.Context, id uint32) (symbol rune, ok bool, err error) {
	err = f.withFrame(ctx, func(sp uint32) error {
		if _, cerr := f.inst.Call(ctx, exportGlyphSymbol, uint64(sp), uint64(id)); cerr != nil {
			return cerr
		}
		sc, serr := f.inst.Views().Scalar()
		if serr != nil {
			return serr
		}
		found, serr := sc.Uint32(sp)
		if serr != nil {
			return serr
		}
		if found == 0 {
			return nil
		}
		cp, serr := sc.Uint32(sp + 4)
		if serr != nil {
			return serr
		}
		symbol, ok = rune(cp), true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return symbol, ok, nil
}

// TerminalSize returns the terminal geometry in cells.
func (f *Facade) TerminalSize(ctx context.Context) (TerminalSize, error) {
	var size TerminalSize
	err := f.withFrame(ctx, func(sp uint32) error {
		if _, cerr := f.inst.Call(ctx, exportTerminalSize, uint64(sp)); cerr != nil {
			return cerr
		}
		return f.readU32Pair(sp, &size.Cols, &size.Rows)
	})
	return size, err
}

// CanvasSize returns the canvas geometry in pixels.
func (f *Facade) CanvasSize(ctx context.Context) (CanvasSize, error) {
	var size CanvasSize
	err := f.withFrame(ctx, func(sp uint32) error {
		if _, cerr := f.inst.Call(ctx, exportCanvasSize, uint64(sp)); cerr != nil {
			return cerr
		}
		return f.readU32Pair(sp, &size.Width, &size.Height)
	})
	return size, err
}

// CellSize returns the geometry of one cell in pixels.
func (f *Facade) CellSize(ctx context.Context) (CellSize, error) {
	var size CellSize
	err := f.withFrame(ctx, func(sp uint32) error {
		if _, cerr := f.inst.Call(ctx, exportCellSize, uint64(sp)); cerr != nil {
			return cerr
		}
		sc, serr := f.inst.Views().Scalar()
		if serr != nil {
			return serr
		}
		if size.Width, serr = sc.Float64(sp); serr != nil {
			return serr
		}
		size.Height, serr = sc.Float64(sp + 8)
		return serr
	})
	return size, err
}

// MissingGlyphs returns the codepoints rendered with a substitute glyph
// since bootstrap. The module-owned list buffer is released before return.
func (f *Facade) MissingGlyphs(ctx context.Context) ([]rune, error) {
	var out []rune
	err := f.withFrame(ctx, func(sp uint32) error {
		if _, cerr := f.inst.Call(ctx, exportMissingGlyphs, uint64(sp)); cerr != nil {
			return cerr
		}
		var ptr, length uint32
		if rerr := f.readU32Pair(sp, &ptr, &length); rerr != nil {
			return rerr
		}
		if length == 0 {
			return nil
		}
		vals, verr := f.inst.Views().Uint32s(ptr, length)
		if verr != nil {
			return verr
		}
		out = make([]rune, length)
		for i, v := range vals {
			out[i] = rune(v)
		}
		f.inst.Allocator().Free(ptr, length*4, 4)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Facade) readU32Pair(sp uint32, first, second *uint32) error {
	sc, err := f.inst.Views().Scalar()
	if err != nil {
		return err
	}
	if *first, err = sc.Uint32(sp); err != nil {
		return err
	}
	*second, err = sc.Uint32(sp + 4)
	return err
}

// withFrame reserves retptr scratch for the duration of fn.
func (f *Facade) withFrame(ctx context.Context, fn func(sp uint32) error) (err error) {
	sp, err := f.inst.StackAlloc(ctx, frameSize)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := f.inst.StackFree(ctx, frameSize); ferr != nil && err == nil {
			err = ferr
		}
	}()
	return fn(sp)
}
