// Package tokenmgr is the interactive scope picker behind "gridctl token".
package tokenmgr

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gridlink/internal/auth"
	"github.com/mattjoyce/gridlink/internal/config"
)

var (
	headerStyle = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	doneStyle   = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

type keyMap struct {
	Toggle  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var keys = keyMap{
	Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "cancel")),
}

// scopeItem is one catalog entry. implied marks grid:ro while grid:rw is on.
type scopeItem struct {
	scope   string
	desc    string
	on      bool
	implied bool
}

func (i scopeItem) Title() string {
	switch {
	case i.on:
		return "[x] " + i.scope
	case i.implied:
		return "[~] " + i.scope + " (implied)"
	default:
		return "[ ] " + i.scope
	}
}
func (i scopeItem) Description() string { return i.desc }
func (i scopeItem) FilterValue() string { return i.scope }

// Model picks scopes for a new API token.
type Model struct {
	list      list.Model
	cancelled bool
	confirmed bool
	chosen    []string
}

func New() Model {
	items := make([]list.Item, len(auth.Catalog))
	for i, c := range auth.Catalog {
		items[i] = scopeItem{scope: c.Scope, desc: c.Desc}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Token scopes"
	l.Styles.Title = headerStyle
	l.SetFilteringEnabled(false)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Confirm}
	}
	return Model{list: l}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Cancel):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			m.toggle(m.list.Index())
			return m, nil
		case key.Matches(msg, keys.Confirm):
			m.confirmed = true
			m.chosen = Normalize(m.on())
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) toggle(idx int) {
	items := m.list.Items()
	it, ok := items[idx].(scopeItem)
	if !ok {
		return
	}
	it.on = !it.on
	m.list.SetItem(idx, it)

	writeOn := slices.Contains(m.on(), auth.ScopeGridWrite)
	for i, li := range m.list.Items() {
		if si, ok := li.(scopeItem); ok && si.scope == auth.ScopeGridRead && si.implied != writeOn {
			si.implied = writeOn
			m.list.SetItem(i, si)
		}
	}
}

func (m Model) on() []string {
	var out []string
	for _, li := range m.list.Items() {
		if si, ok := li.(scopeItem); ok && si.on {
			out = append(out, si.scope)
		}
	}
	return out
}

func (m Model) View() string {
	switch {
	case m.cancelled:
		return doneStyle.Render("Cancelled.")
	case m.confirmed:
		return doneStyle.Render("Scopes: " + strings.Join(m.chosen, ", "))
	}
	return "\n" + m.list.View()
}

// Selected returns the confirmed scopes, or nil if the picker was cancelled.
func (m Model) Selected() []string {
	if !m.confirmed {
		return nil
	}
	return m.chosen
}

// Normalize drops scopes another selected scope already grants: "*"
// subsumes everything and grid:rw subsumes grid:ro.
func Normalize(scopes []string) []string {
	if slices.Contains(scopes, auth.ScopeAll) {
		return []string{auth.ScopeAll}
	}
	write := slices.Contains(scopes, auth.ScopeGridWrite)
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if write && s == auth.ScopeGridRead {
			continue
		}
		out = append(out, s)
	}
	return out
}

// NewToken returns a random 32-byte token, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Snippet renders the api.tokens entry to paste into config.yaml.
func Snippet(token string, scopes []string) (string, error) {
	if len(scopes) == 0 {
		return "", fmt.Errorf("no scopes selected")
	}
	doc := struct {
		API struct {
			Tokens []config.TokenConf `yaml:"tokens"`
		} `yaml:"api"`
	}{}
	doc.API.Tokens = []config.TokenConf{{Token: token, Scopes: scopes}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render snippet: %w", err)
	}
	return string(out), nil
}
