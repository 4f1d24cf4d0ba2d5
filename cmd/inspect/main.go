package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/glyphterm/wasm-bridge/bridge"
	"github.com/glyphterm/wasm-bridge/hostops"
	"github.com/glyphterm/wasm-bridge/inspect"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to terminal module wasm file")
		storePath   = flag.String("store", "", "Persistence database path (default: in-memory)")
		list        = flag.Bool("list", false, "List exported functions and exit")
		glyphArg    = flag.String("glyph", "", "Look up a glyph by character, codepoint or U+XXXX")
		geometry    = flag.Bool("geometry", false, "Print terminal, canvas and cell geometry")
		missing     = flag.Bool("missing", false, "Print codepoints drawn with the substitute glyph")
		funcName    = flag.String("func", "", "Exported function to call")
		strArg      = flag.String("arg", "", "String argument for -func, passed as (ptr, len)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: inspect -wasm <file.wasm> [-glyph ch] [-geometry] [-missing]")
		fmt.Fprintln(os.Stderr, "       inspect -wasm <file.wasm> -func name [-arg string]")
		fmt.Fprintln(os.Stderr, "       inspect -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       inspect -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *storePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *storePath, *glyphArg, *funcName, *strArg, *list, *geometry, *missing, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, storePath, glyphArg, funcName, strArg string, listOnly, geometry, missing, verbose bool) error {
	ctx := context.Background()

	log := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		log = dev
		bridge.SetLogger(log)
	}
	defer log.Sync()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := bridge.New(ctx)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	store, err := openStore(rt, storePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	clock := hostops.NewClock()
	if err := rt.RegisterHost(clock); err != nil {
		return fmt.Errorf("register clock: %w", err)
	}

	mod, err := rt.CompileBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	defer mod.Close(ctx)

	fmt.Printf("Module: %s (%d bytes)\n", wasmFile, len(data))

	names := mod.ExportNames()
	sort.Strings(names)
	fmt.Printf("\nExported functions:\n")
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}

	if listOnly {
		return nil
	}

	if err := mod.CheckImports(); err != nil {
		return err
	}

	fmt.Printf("\nInstantiating module...\n")
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	facade := inspect.New(inst)

	count, err := facade.GlyphCount(ctx)
	if err != nil {
		return fmt.Errorf("glyph count: %w", err)
	}
	fmt.Printf("Font atlas: %d glyphs\n", count)

	if geometry {
		if err := printGeometry(ctx, facade); err != nil {
			return err
		}
	}

	if glyphArg != "" {
		symbol, err := parseSymbol(glyphArg)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", describeGlyph(ctx, facade, symbol))
	}

	if missing {
		if err := printMissing(ctx, facade); err != nil {
			return err
		}
	}

	if funcName != "" {
		return callExport(ctx, inst, funcName, strArg)
	}
	return nil
}

// openStore registers the storage namespace, file-backed when a path is
// given and in-memory otherwise.
func openStore(rt *bridge.Runtime, path string, log *zap.Logger) (*hostops.Storage, error) {
	if err := rt.RegisterHost(hostops.NewConsole(log)); err != nil {
		return nil, fmt.Errorf("register console: %w", err)
	}
	if path == "" {
		path = ":memory:"
	}
	store, err := hostops.OpenStorage(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := rt.RegisterHost(store); err != nil {
		store.Close()
		return nil, fmt.Errorf("register storage: %w", err)
	}
	return store, nil
}

func printGeometry(ctx context.Context, facade *inspect.Facade) error {
	ts, err := facade.TerminalSize(ctx)
	if err != nil {
		return fmt.Errorf("terminal size: %w", err)
	}
	cs, err := facade.CanvasSize(ctx)
	if err != nil {
		return fmt.Errorf("canvas size: %w", err)
	}
	cell, err := facade.CellSize(ctx)
	if err != nil {
		return fmt.Errorf("cell size: %w", err)
	}
	fmt.Printf("\nGeometry:\n")
	fmt.Printf("  terminal: %d x %d cells\n", ts.Cols, ts.Rows)
	fmt.Printf("  canvas:   %d x %d px\n", cs.Width, cs.Height)
	fmt.Printf("  cell:     %g x %g px\n", cell.Width, cell.Height)
	return nil
}

func printMissing(ctx context.Context, facade *inspect.Facade) error {
	runes, err := facade.MissingGlyphs(ctx)
	if err != nil {
		return fmt.Errorf("missing glyphs: %w", err)
	}
	if len(runes) == 0 {
		fmt.Printf("\nNo substitute glyphs drawn.\n")
		return nil
	}
	fmt.Printf("\nDrawn with the substitute glyph:\n")
	for _, r := range runes {
		fmt.Printf("  %q (U+%04X)\n", r, r)
	}
	return nil
}

func callExport(ctx context.Context, inst *bridge.Instance, name, strArg string) error {
	var args []uint64
	if strArg != "" {
		ptr, length, err := inst.EncodeString(ctx, strArg)
		if err != nil {
			return fmt.Errorf("encode argument: %w", err)
		}
		args = append(args, uint64(ptr), uint64(length))
		fmt.Printf("\nCalling %s(%q)...\n", name, strArg)
	} else {
		fmt.Printf("\nCalling %s()...\n", name)
	}

	results, err := inst.Call(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	if len(results) == 0 {
		fmt.Printf("Result: (none)\n")
		return nil
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = strconv.FormatUint(r, 10)
	}
	fmt.Printf("Result: %s\n", strings.Join(parts, ", "))
	return nil
}

// parseSymbol accepts a literal character, a multi-digit decimal codepoint
// or U+XXXX. A single character is always taken literally, so "5" is the
// digit five.
func parseSymbol(arg string) (rune, error) {
	if rest, ok := strings.CutPrefix(strings.ToUpper(arg), "U+"); ok {
		v, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("codepoint %q: %w", arg, err)
		}
		return rune(v), nil
	}
	if utf8.RuneCountInString(arg) > 1 {
		if v, err := strconv.ParseUint(arg, 10, 32); err == nil {
			return rune(v), nil
		}
	}
	r, size := utf8.DecodeRuneInString(arg)
	if r == utf8.RuneError && size <= 1 {
		return 0, fmt.Errorf("not a character: %q", arg)
	}
	return r, nil
}

func describeGlyph(ctx context.Context, facade *inspect.Facade, symbol rune) string {
	id, ok, err := facade.GlyphID(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("%q (U+%04X): lookup failed: %v", symbol, symbol, err)
	}
	if !ok {
		return fmt.Sprintf("%q (U+%04X): no glyph, substitute used", symbol, symbol)
	}
	back, found, err := facade.Symbol(ctx, id)
	if err != nil || !found {
		return fmt.Sprintf("%q (U+%04X): glyph %d", symbol, symbol, id)
	}
	return fmt.Sprintf("%q (U+%04X): glyph %d -> %q", symbol, symbol, id, back)
}
