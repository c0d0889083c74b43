package tui

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/gridlink/internal/api"
	"github.com/mattjoyce/gridlink/internal/events"
	"github.com/mattjoyce/gridlink/internal/store"
)

func sampleGrid() api.GridResponse {
	return api.GridResponse{
		Spaces: []api.SpaceView{
			{Space: store.Space{ID: "seg-a", Owner: "audit", RowIDs: []string{"row-1"}}},
			{Space: store.Space{ID: "seg-t", Owner: "table", RowIDs: []string{"row-2"}}},
		},
		Rows: []api.RowView{
			{Row: store.Row[json.RawMessage]{ID: "row-1", SpaceID: "seg-a", Data: json.RawMessage(`"note"`)}, Key: "0.99998"},
			{Row: store.Row[json.RawMessage]{ID: "row-2", SpaceID: "seg-t", Cells: []string{"c0", "c1"}}, Key: "0.00001"},
		},
		Cells: map[string]store.Cell{},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func TestGridMsgFillsTable(t *testing.T) {
	m := *NewMonitor("http://example.test/", "k")
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, gridMsg(sampleGrid()))

	rows := m.rows.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 table rows, got %d", len(rows))
	}
	if rows[0][0] != "audit" || rows[0][1] != "0.99998" || rows[0][4] != `"note"` {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][0] != "table" || rows[1][3] != "2" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}

	view := m.View()
	for _, want := range []string{"Segments: 2", "Rows: 2", "Event Stream", "No events yet"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestEventMsgPrependsAndCaps(t *testing.T) {
	m := *NewMonitor("http://example.test", "k")
	for i := 0; i < eventLogSize+5; i++ {
		m = update(t, m, eventMsg(events.Event{ID: int64(i + 1), Type: events.RowInserted, Data: []byte(`{}`)}))
	}
	if len(m.eventLog) != eventLogSize {
		t.Fatalf("event log = %d, want %d", len(m.eventLog), eventLogSize)
	}
	if m.eventLog[0].ID != int64(eventLogSize+5) {
		t.Fatalf("newest event not first: %d", m.eventLog[0].ID)
	}
}

func TestErrorsAndDisconnectsAreShown(t *testing.T) {
	m := *NewMonitor("http://example.test", "k")
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, sseDisconnectedMsg{})
	if !strings.Contains(m.View(), "event stream disconnected") {
		t.Fatalf("disconnect not shown:\n%s", m.View())
	}
	m = update(t, m, gridMsg(sampleGrid()))
	if m.lastError != "" {
		t.Fatalf("fresh grid must clear the error, got %q", m.lastError)
	}
}

func TestQuitKey(t *testing.T) {
	m := *NewMonitor("http://example.test", "k")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q must quit")
	}
}

func TestFetchGridAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "invalid API key"})
			return
		}
		switch r.URL.Path {
		case "/grid":
			_ = json.NewEncoder(w).Encode(sampleGrid())
		case "/healthz":
			_ = json.NewEncoder(w).Encode(api.HealthzResponse{Status: "ok", PluginsLoaded: 1})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := *NewMonitor(srv.URL, "k")
	g, ok := m.fetchGrid().(gridMsg)
	if !ok || len(g.Rows) != 2 || g.Rows[1].Key != "0.00001" {
		t.Fatalf("unexpected grid msg: %#v", g)
	}
	h, ok := m.fetchHealth().(healthMsg)
	if !ok || h.PluginsLoaded != 1 {
		t.Fatalf("unexpected health msg: %#v", h)
	}

	bad := *NewMonitor(srv.URL, "wrong")
	msg := bad.fetchGrid()
	err, ok := msg.(errMsg)
	if !ok || !strings.Contains(err.Error(), "401 invalid API key") {
		t.Fatalf("expected auth error, got %#v", msg)
	}
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 4",
		"event: row.inserted",
		`data: {"row":"r1"}`,
		"",
		"id: 5",
		"event: row.destroyed",
		`data: {"row":"r1"}`,
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	readSSE(bufio.NewScanner(strings.NewReader(stream)), ch)
	close(ch)

	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID != 4 || got[0].Type != events.RowInserted || string(got[0].Data) != `{"row":"r1"}` {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Type != events.RowDestroyed {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

func TestFilterKeyNarrowsEventPane(t *testing.T) {
	m := *NewMonitor("http://example.test", "k")
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, eventMsg(events.Event{ID: 7, Type: events.CellsLinked, Data: []byte(`{"from":"c1"}`)}))
	m = update(t, m, eventMsg(events.Event{ID: 9, Type: events.RowDestroyed, Data: []byte(`{"row":"r1"}`)}))
	if m.lastEventID != 9 {
		t.Fatalf("lastEventID = %d, want 9", m.lastEventID)
	}

	// one press: row.* only
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	pane := m.renderEvents()
	if !strings.Contains(pane, events.RowDestroyed) || strings.Contains(pane, events.CellsLinked) {
		t.Fatalf("row filter pane:\n%s", pane)
	}
	if !strings.Contains(m.View(), "[row.*]") {
		t.Fatal("active filter not labelled")
	}

	for range len(eventFilters) - 1 {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	}
	if m.filterIdx != 0 || !strings.Contains(m.renderEvents(), events.CellsLinked) {
		t.Fatal("filter did not cycle back to all events")
	}
}

func TestReconnectResumesFromLastEvent(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Last-Event-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := *NewMonitor(srv.URL, "k")
	m.lastEventID = 41
	_, cmd := m.Update(reconnectMsg{})
	if _, ok := cmd().(sseDisconnectedMsg); !ok {
		t.Fatal("closed stream must report a disconnect")
	}
	if id := <-got; id != "41" {
		t.Fatalf("Last-Event-ID = %q, want 41", id)
	}
}
