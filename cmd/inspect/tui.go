package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glyphterm/wasm-bridge/bridge"
	"github.com/glyphterm/wasm-bridge/hostops"
	"github.com/glyphterm/wasm-bridge/inspect"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectModel struct {
	err       error
	rt        *bridge.Runtime
	inst      *bridge.Instance
	store     *hostops.Storage
	facade    *inspect.Facade
	filename  string
	storePath string

	glyphs uint32
	term   inspect.TerminalSize
	canvas inspect.CanvasSize
	cell   inspect.CellSize

	input   textinput.Model
	result  string
	lookErr error
	loaded  bool
}

func newInspectModel(filename, storePath string) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = "character, codepoint or U+XXXX"
	ti.Prompt = "glyph> "
	ti.Width = 40
	ti.Focus()
	return &inspectModel{filename: filename, storePath: storePath, input: ti}
}

type loadedMsg struct {
	err    error
	rt     *bridge.Runtime
	inst   *bridge.Instance
	store  *hostops.Storage
	facade *inspect.Facade
	glyphs uint32
	term   inspect.TerminalSize
	canvas inspect.CanvasSize
	cell   inspect.CellSize
}

type lookupMsg struct {
	line string
	err  error
}

func (m *inspectModel) Init() tea.Cmd {
	return tea.Batch(m.loadModule, textinput.Blink)
}

func (m *inspectModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := bridge.New(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}

	store, err := openStore(rt, m.storePath, nil)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	if err := rt.RegisterHost(hostops.NewClock()); err != nil {
		store.Close()
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	mod, err := rt.CompileBytes(ctx, data)
	if err != nil {
		store.Close()
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		store.Close()
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	msg := loadedMsg{rt: rt, inst: inst, store: store, facade: inspect.New(inst)}
	fail := func(err error) tea.Msg {
		inst.Close(ctx)
		store.Close()
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	if msg.glyphs, err = msg.facade.GlyphCount(ctx); err != nil {
		return fail(err)
	}
	if msg.term, err = msg.facade.TerminalSize(ctx); err != nil {
		return fail(err)
	}
	if msg.canvas, err = msg.facade.CanvasSize(ctx); err != nil {
		return fail(err)
	}
	if msg.cell, err = msg.facade.CellSize(ctx); err != nil {
		return fail(err)
	}
	return msg
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.close()
			return m, tea.Quit

		case "enter":
			if !m.loaded {
				return m, nil
			}
			query := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if query == "" {
				return m, m.reportMissing
			}
			return m, m.lookup(query)
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt, m.inst, m.store, m.facade = msg.rt, msg.inst, msg.store, msg.facade
		m.glyphs, m.term, m.canvas, m.cell = msg.glyphs, msg.term, msg.canvas, msg.cell
		m.loaded = true

	case lookupMsg:
		m.result, m.lookErr = msg.line, msg.err
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inspectModel) close() {
	ctx := context.Background()
	if m.inst != nil {
		m.inst.Close(ctx)
	}
	if m.store != nil {
		m.store.Close()
	}
	if m.rt != nil {
		m.rt.Close(ctx)
	}
}

func (m *inspectModel) lookup(query string) tea.Cmd {
	return func() tea.Msg {
		symbol, err := parseSymbol(query)
		if err != nil {
			return lookupMsg{err: err}
		}
		return lookupMsg{line: describeGlyph(context.Background(), m.facade, symbol)}
	}
}

func (m *inspectModel) reportMissing() tea.Msg {
	runes, err := m.facade.MissingGlyphs(context.Background())
	if err != nil {
		return lookupMsg{err: err}
	}
	if len(runes) == 0 {
		return lookupMsg{line: "no substitute glyphs drawn"}
	}
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = fmt.Sprintf("%q", r)
	}
	return lookupMsg{line: "substitute used for " + strings.Join(parts, " ")}
}

func (m *inspectModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if !m.loaded {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Glyph Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	writeRow(&b, "atlas", fmt.Sprintf("%d glyphs", m.glyphs))
	writeRow(&b, "terminal", fmt.Sprintf("%d x %d cells", m.term.Cols, m.term.Rows))
	writeRow(&b, "canvas", fmt.Sprintf("%d x %d px", m.canvas.Width, m.canvas.Height))
	writeRow(&b, "cell", fmt.Sprintf("%g x %g px", m.cell.Width, m.cell.Height))

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.lookErr != nil {
		b.WriteString(errorStyle.Render("Error: " + m.lookErr.Error()))
		b.WriteString("\n")
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter look up • empty enter missing glyphs • esc quit"))
	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", label)))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func runInteractive(filename, storePath string) error {
	p := tea.NewProgram(newInspectModel(filename, storePath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
