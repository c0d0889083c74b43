package tokenmgr

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gridlink/internal/auth"
	"github.com/mattjoyce/gridlink/internal/config"
)

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func TestPickerSelectsScopes(t *testing.T) {
	m := New()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m = next.(Model)

	// skip "*", toggle grid:ro, toggle grid:rw twice, toggle journal:ro
	m = press(t, m, down, space, down, space, space, down, space, enter)

	got := m.Selected()
	want := []string{auth.ScopeGridRead, auth.ScopeJournal}
	if len(got) != len(want) {
		t.Fatalf("selected %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selected %v, want %v", got, want)
		}
	}
}

func TestPickerCancel(t *testing.T) {
	m := press(t, New(), space, tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.Selected() != nil {
		t.Fatalf("cancelled picker returned %v", m.Selected())
	}
	if m.View() == "" {
		t.Fatal("expected cancel view")
	}
}

func TestSnippetRoundTripsThroughConfig(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("token length = %d, want 64", len(tok))
	}

	out, err := Snippet(tok, []string{auth.ScopeEvents})
	if err != nil {
		t.Fatalf("Snippet: %v", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("snippet is not valid config: %v\n%s", err, out)
	}
	if len(cfg.API.Tokens) != 1 || cfg.API.Tokens[0].Token != tok || cfg.API.Tokens[0].Scopes[0] != auth.ScopeEvents {
		t.Fatalf("unexpected tokens: %+v", cfg.API.Tokens)
	}

	if _, err := Snippet(tok, nil); err == nil {
		t.Fatal("expected error without scopes")
	}
}

func TestPickerMarksReadImpliedByWrite(t *testing.T) {
	m := New()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m = next.(Model)

	// toggle grid:rw on
	m = press(t, m, down, down, space)
	ro := m.list.Items()[1].(scopeItem)
	if ro.scope != auth.ScopeGridRead || !ro.implied || ro.on {
		t.Fatalf("grid:ro item = %+v, want implied", ro)
	}

	// grid:ro ticked as well is dropped on confirm
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, space, enter)
	got := m.Selected()
	if len(got) != 1 || got[0] != auth.ScopeGridWrite {
		t.Fatalf("selected %v, want [grid:rw]", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{auth.ScopeEvents, auth.ScopeAll}, []string{auth.ScopeAll}},
		{[]string{auth.ScopeGridRead, auth.ScopeGridWrite, auth.ScopeJournal}, []string{auth.ScopeGridWrite, auth.ScopeJournal}},
		{[]string{auth.ScopeGridRead}, []string{auth.ScopeGridRead}},
		{nil, []string{}},
	}
	for _, tc := range cases {
		got := Normalize(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}
