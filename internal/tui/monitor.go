// Package tui holds the terminal front ends. Monitor watches a running grid
// over the HTTP API: it polls layout and health and follows the structural
// event stream. Demo drives a grid in-process, moving a cursor along cell
// links and dispatching key, click and edit commands.
package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gridlink/internal/api"
	"github.com/mattjoyce/gridlink/internal/events"
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

const (
	eventLogSize   = 50
	healthInterval = 5 * time.Second
	reconnectDelay = 3 * time.Second
)

// --- Keys ---

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Filter  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Filter, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Refresh, k.Filter, k.Help, k.Quit}}
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle event filter")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// --- Types ---

type Model struct {
	apiURL string
	apiKey string
	client *http.Client

	width  int
	height int

	grid      api.GridResponse
	health    api.HealthzResponse
	eventLog  []events.Event
	hubEvents chan events.Event
	lastError string

	// lastEventID is sent as Last-Event-ID when the stream reconnects so
	// the server replays what was missed.
	lastEventID int64
	filterIdx   int

	rows table.Model
	keys keyMap
	help help.Model
}

type eventMsg events.Event
type gridMsg api.GridResponse
type healthMsg api.HealthzResponse
type errMsg error
type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// eventFilters are cycled by the filter key. They only narrow what the
// event pane shows; the stream itself is unfiltered.
var eventFilters = []events.Filter{
	nil,
	{"row.*"},
	{"cells.*"},
	{"segment.*"},
	{events.CommandBlocked},
}

// --- Init ---

func NewMonitor(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Segment", Width: 14},
			{Title: "Key", Width: 16},
			{Title: "Row", Width: 12},
			{Title: "Cells", Width: 5},
			{Title: "Data", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 5 * time.Second},
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		rows:      t,
		keys:      defaultKeys(),
		help:      help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribeToEvents(0),
		m.receiveNextEvent(),
		m.fetchGrid,
		m.fetchHealth,
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, tea.Batch(m.fetchGrid, m.fetchHealth)
		case key.Matches(msg, m.keys.Filter):
			m.filterIdx = (m.filterIdx + 1) % len(eventFilters)
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rows.SetWidth(m.width - 6)
		m.rows.SetHeight(max(m.height/2-4, 3))
		m.help.Width = m.width - 4

	case eventMsg:
		m.pushEvent(events.Event(msg))
		return m, tea.Batch(m.receiveNextEvent(), m.fetchGrid)

	case gridMsg:
		m.grid = api.GridResponse(msg)
		m.lastError = ""
		m.updateTable()
		return m, nil

	case healthMsg:
		m.health = api.HealthzResponse(msg)
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return m.fetchHealth() })

	case sseDisconnectedMsg:
		m.lastError = "event stream disconnected, reconnecting"
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.subscribeToEvents(m.lastEventID)

	case errMsg:
		if msg != nil {
			m.lastError = msg.Error()
		}
		return m, nil
	}

	m.rows, cmd = m.rows.Update(msg)
	return m, cmd
}

func (m *Model) pushEvent(e events.Event) {
	if e.ID > m.lastEventID {
		m.lastEventID = e.ID
	}
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > eventLogSize {
		m.eventLog = m.eventLog[:eventLogSize]
	}
}

func (m *Model) updateTable() {
	owners := make(map[string]string, len(m.grid.Spaces))
	for _, sp := range m.grid.Spaces {
		owners[sp.ID] = sp.Owner
	}

	rows := make([]table.Row, 0, len(m.grid.Rows))
	for _, r := range m.grid.Rows {
		rows = append(rows, table.Row{
			owners[r.SpaceID],
			r.Key,
			shortID(r.ID),
			strconv.Itoa(len(r.Cells)),
			truncate(string(r.Data), 30),
		})
	}
	m.rows.SetRows(rows)
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	rowsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Rows"),
			m.rows.View(),
		),
	)
	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream")+dimStyle.Render(m.filterLabel()),
			m.renderEvents(),
		),
	)

	parts := []string{m.renderHeader(), rowsView, eventsView}
	if m.lastError != "" {
		parts = append(parts, statusFailed.Render(" "+m.lastError))
	}
	parts = append(parts, m.help.View(m.keys))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	status := statusOK.Render("RUNNING")
	if m.health.Status != "ok" && m.health.Status != "" {
		status = statusFailed.Render("DEGRADED")
	}
	uptime := time.Duration(m.health.UptimeSeconds) * time.Second

	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Segments: %d", len(m.grid.Spaces)),
		fmt.Sprintf("Rows: %d", len(m.grid.Rows)),
		fmt.Sprintf("Plugins: %d", m.health.PluginsLoaded),
		fmt.Sprintf("Dropped: %d", m.health.EventsDropped),
	}
	cols := make([]string, len(items))
	for i, it := range items {
		cols[i] = lipgloss.NewStyle().Width((m.width - 4) / len(items)).Render(it)
	}
	return borderStyle.Width(m.width - 4).Render(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
}

func (m Model) filterLabel() string {
	f := eventFilters[m.filterIdx]
	if len(f) == 0 {
		return ""
	}
	return " [" + strings.Join(f, ",") + "]"
}

func (m Model) renderEvents() string {
	filter := eventFilters[m.filterIdx]
	var lines []string
	for _, e := range m.eventLog {
		if len(lines) == 10 {
			break
		}
		if !filter.Match(e.Type) {
			continue
		}
		ts := e.At.Format("15:04:05")
		lines = append(lines, fmt.Sprintf("%s | %-15s | %s", ts, e.Type, truncate(string(e.Data), 60)))
	}
	if len(lines) == 0 {
		return dimStyle.Render("  No events yet...")
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// --- Commands ---

func (m Model) get(path string, into any) error {
	req, err := http.NewRequest(http.MethodGet, m.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func (m Model) fetchGrid() tea.Msg {
	var g api.GridResponse
	if err := m.get("/grid", &g); err != nil {
		return errMsg(err)
	}
	return gridMsg(g)
}

func (m Model) fetchHealth() tea.Msg {
	var h api.HealthzResponse
	if err := m.get("/healthz", &h); err != nil {
		return errMsg(err)
	}
	return healthMsg(h)
}

// subscribeToEvents follows /events and feeds parsed events into the
// model's channel until the stream drops. A non-zero since resumes after
// that event id.
func (m Model) subscribeToEvents(since int64) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, m.apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
		if since > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(since, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("GET /events: %d", resp.StatusCode))
		}

		readSSE(bufio.NewScanner(resp.Body), m.hubEvents)
		return sseDisconnectedMsg{}
	}
}

// readSSE parses SSE frames into events until the scanner ends.
func readSSE(scanner *bufio.Scanner, ch chan<- events.Event) {
	var current events.Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(current.Data) > 0 {
				current.At = time.Now()
				ch <- current
			}
			current = events.Event{}
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			current.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			current.Data = []byte(line[6:])
		}
	}
}

func (m Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.hubEvents)
	}
}
