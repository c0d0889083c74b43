package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/store"
)

var (
	cellStyle   = lipgloss.NewStyle().Width(14).Padding(0, 1)
	cursorStyle = cellStyle.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	segStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD")).Bold(true)
)

type demoKeys struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Click   key.Binding
	Edit    key.Binding
	Insert  key.Binding
	Destroy key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k demoKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Insert, k.Destroy, k.Help, k.Quit}
}

func (k demoKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Click, k.Edit, k.Insert, k.Destroy},
		{k.Help, k.Quit},
	}
}

func defaultDemoKeys() demoKeys {
	return demoKeys{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Click:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "click")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit cell")),
		Insert:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "insert row")),
		Destroy: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "destroy row")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Demo drives a grid in-process. Row data is one string per column; the
// cursor is a cell id and moves only along cell links.
type Demo struct {
	grid    *grid.Grid[[]string]
	columns int

	cursor  string
	editing bool
	input   textinput.Model
	status  string

	keys demoKeys
	help help.Model
}

// NewDemo wraps g. Rows inserted from the demo get columns cells.
func NewDemo(g *grid.Grid[[]string], columns int) *Demo {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 64

	d := &Demo{
		grid:    g,
		columns: max(columns, 1),
		input:   ti,
		keys:    defaultDemoKeys(),
		help:    help.New(),
	}
	d.cursor = d.firstCell()
	return d
}

func (d Demo) Init() tea.Cmd {
	return textinput.Blink
}

func (d Demo) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.help.Width = msg.Width
		return d, nil

	case tea.KeyMsg:
		if d.editing {
			return d.updateEditing(msg)
		}
		switch {
		case key.Matches(msg, d.keys.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
		case key.Matches(msg, d.keys.Up):
			d.move(store.Top, "up")
		case key.Matches(msg, d.keys.Down):
			d.move(store.Bottom, "down")
		case key.Matches(msg, d.keys.Left):
			d.move(store.Left, "left")
		case key.Matches(msg, d.keys.Right):
			d.move(store.Right, "right")
		case key.Matches(msg, d.keys.Click):
			d.click()
		case key.Matches(msg, d.keys.Edit):
			return d.startEdit()
		case key.Matches(msg, d.keys.Insert):
			d.insertRow()
		case key.Matches(msg, d.keys.Destroy):
			d.destroyRow()
		}
	}
	return d, nil
}

func (d Demo) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		d.editing = false
		d.input.Blur()
		d.status = "edit cancelled"
		return d, nil
	case tea.KeyEnter:
		d.editing = false
		d.input.Blur()
		d.commitEdit(d.input.Value())
		return d, nil
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return d, cmd
}

// move sends key_down to the cursor cell and follows the link in dir when
// the command got through.
func (d *Demo) move(dir store.Coordinate, name string) {
	cell, ok := d.grid.Cell(d.cursor)
	if !ok {
		d.cursor = d.firstCell()
		return
	}
	if !d.dispatchCell(command.KeyDown, command.KeyPayload{Key: name}) {
		return
	}
	next := cell.Link(dir)
	if next == "" {
		d.status = "no cell " + name
		return
	}
	d.cursor = next
	d.status = ""
}

func (d *Demo) click() {
	if d.dispatchCell(command.Click, nil) {
		d.status = "clicked " + d.cursor
	}
}

// dispatchCell sends a cell command to the cursor and reports whether it
// was accepted. A refusal is shown in the status line.
func (d *Demo) dispatchCell(name command.Name, payload any) bool {
	if d.cursor == "" {
		d.status = "grid is empty, press i to insert a row"
		return false
	}
	cmd, err := command.New(command.KindCell, name, d.cursor, payload)
	if err != nil {
		d.status = err.Error()
		return false
	}
	out := d.grid.Dispatch(cmd)
	if !out.Accepted() {
		d.status = fmt.Sprintf("%s: %s", cmd.String(), out)
		return false
	}
	return true
}

func (d Demo) startEdit() (tea.Model, tea.Cmd) {
	cell, ok := d.grid.Cell(d.cursor)
	if !ok {
		d.status = "no cell selected"
		return d, nil
	}
	row, _ := d.grid.Row(cell.RowID)
	d.input.SetValue(valueAt(row.Data, cell.Column))
	d.input.CursorEnd()
	d.editing = true
	d.status = ""
	return d, d.input.Focus()
}

// commitEdit dispatches cell/edit and, once accepted, stores the value
// through row/update so plugins see both.
func (d *Demo) commitEdit(value string) {
	cell, ok := d.grid.Cell(d.cursor)
	if !ok {
		d.status = "cell is gone"
		return
	}
	if !d.dispatchCell(command.Edit, command.EditPayload{Value: value}) {
		return
	}
	row, _ := d.grid.Row(cell.RowID)
	data := slices.Clone(row.Data)
	for len(data) <= cell.Column {
		data = append(data, "")
	}
	data[cell.Column] = value
	if err := d.grid.UpdateRow(cell.RowID, data); err != nil {
		d.status = err.Error()
		return
	}
	d.status = "updated " + cell.RowID
}

// insertRow adds a row below the cursor row, or at the bottom of the table
// when the cursor row sits in another segment.
func (d *Demo) insertRow() {
	table := d.grid.TableSegment()
	pos := command.Bottom
	if cell, ok := d.grid.Cell(d.cursor); ok {
		if row, ok := d.grid.Row(cell.RowID); ok && row.SpaceID == table {
			pos = command.After(row.ID)
		}
	}
	rowID, err := d.grid.Insert(table, make([]string, d.columns), pos)
	if err != nil {
		d.status = err.Error()
		return
	}
	ids, err := d.grid.PopulateRow(rowID, d.columns)
	if err != nil {
		d.status = err.Error()
		return
	}
	if len(ids) > 0 {
		d.cursor = ids[0]
	}
	d.status = "inserted " + rowID
}

// destroyRow removes the cursor row and moves the cursor to a vertical
// neighbour in the same column.
func (d *Demo) destroyRow() {
	cell, ok := d.grid.Cell(d.cursor)
	if !ok {
		d.status = "no row selected"
		return
	}
	next := cell.Top
	if next == "" {
		next = cell.Bottom
	}
	if err := d.grid.DestroyRow(cell.RowID); err != nil {
		d.status = err.Error()
		return
	}
	if _, ok := d.grid.Cell(next); !ok {
		next = d.firstCell()
	}
	d.cursor = next
	d.status = "destroyed " + cell.RowID
}

func (d Demo) firstCell() string {
	for _, r := range d.grid.Snapshot().Rows {
		if len(r.Cells) > 0 {
			return r.Cells[0]
		}
	}
	return ""
}

func valueAt(data []string, col int) string {
	if col < len(data) {
		return data[col]
	}
	return ""
}

func (d Demo) View() string {
	snap := d.grid.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Grid Demo"))
	b.WriteString("\n\n")
	for _, sp := range snap.Spaces {
		b.WriteString(segStyle.Render(fmt.Sprintf("── %s ──", sp.Owner)))
		b.WriteString("\n")
		empty := true
		for _, row := range snap.Rows {
			if row.SpaceID != sp.ID {
				continue
			}
			empty = false
			b.WriteString(d.renderRow(row))
			b.WriteString("\n")
		}
		if empty {
			b.WriteString(dimStyle.Render("  (empty)"))
			b.WriteString("\n")
		}
	}

	if d.editing {
		b.WriteString("\nEdit " + d.cursor + ": " + d.input.View() + "\n")
	}
	if d.status != "" {
		b.WriteString("\n" + dimStyle.Render(d.status) + "\n")
	}
	b.WriteString("\n" + d.help.View(d.keys))
	return docStyle.Render(b.String())
}

func (d Demo) renderRow(row store.Row[[]string]) string {
	if len(row.Cells) == 0 {
		return dimStyle.Render("  " + shortID(row.ID) + " (no cells)")
	}
	parts := make([]string, 0, len(row.Cells))
	for col, id := range row.Cells {
		style := cellStyle
		if id == d.cursor {
			style = cursorStyle
		}
		parts = append(parts, style.Render(truncate(valueAt(row.Data, col), 12)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
