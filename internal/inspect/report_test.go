package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/gridlink/internal/bus"
	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/storage"
	"github.com/mattjoyce/gridlink/internal/store"
)

func TestMain(m *testing.M) {
	log.SetupWith("error", "text", &bytes.Buffer{})
	os.Exit(m.Run())
}

func newJournaledGrid(t *testing.T) (*grid.Grid[string], *journal.Journal) {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	j := journal.New(db, nil)

	n := 0
	g, err := grid.New[string](grid.Options{
		NewID:     func() string { n++; return fmt.Sprintf("id-%d", n) },
		Observers: []bus.Observer{j.Observe},
	})
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, j
}

func TestBuildReportRendersLiveRowAndHistory(t *testing.T) {
	t.Parallel()

	g, j := newJournaledGrid(t)
	ctx := context.Background()

	first, err := g.Insert(g.TableSegment(), "alpha", command.Bottom)
	if err != nil {
		t.Fatalf("Insert(first): %v", err)
	}
	second, err := g.Insert(g.TableSegment(), "beta", command.Bottom)
	if err != nil {
		t.Fatalf("Insert(second): %v", err)
	}
	cells, err := g.PopulateRow(second, 2)
	if err != nil {
		t.Fatalf("PopulateRow: %v", err)
	}
	if _, err := g.PopulateRow(first, 2); err != nil {
		t.Fatalf("PopulateRow(first): %v", err)
	}
	g.Dispatch(command.Command{Kind: command.KindCell, Name: command.Click, TargetID: cells[1]})

	out, err := BuildReport(ctx, g.Snapshot(), j, second)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	for _, want := range []string{
		"Row Report",
		"Row ID      : " + second,
		"Status      : live",
		"Segment     : " + g.TableSegment() + " (table)",
		"Above       : " + first,
		"Below       : <none>",
		`Data        : "beta"`,
		"[0] " + cells[0],
		"[1] " + cells[1],
		"History",
		"row/cells_ready -> " + second,
		"cell/click -> " + cells[1] + " (unhandled) by host",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "-> "+first+" ") {
		t.Fatalf("report includes history of another row:\n%s", out)
	}
}

func TestBuildJSONReport(t *testing.T) {
	t.Parallel()

	g, j := newJournaledGrid(t)
	ctx := context.Background()

	row, err := g.Insert(g.TableSegment(), "alpha", command.Bottom)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := g.PopulateRow(row, 3); err != nil {
		t.Fatalf("PopulateRow: %v", err)
	}
	if err := g.UpdateRow(row, "alpha"); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	raw, err := BuildJSONReport(ctx, g.Snapshot(), j, row)
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}

	var got Report
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if got.Status != "live" || got.Owner != "table" || got.Key == "" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if string(got.Data) != `"alpha"` {
		t.Fatalf("data = %s, want \"alpha\"", got.Data)
	}
	if len(got.Cells) != 3 {
		t.Fatalf("cells = %d, want 3", len(got.Cells))
	}
	if got.Cells[0].Right != got.Cells[1].ID || got.Cells[2].Left != got.Cells[1].ID {
		t.Fatalf("horizontal links not reported: %+v", got.Cells)
	}
	// the insert is journaled under its segment, not the row
	if len(got.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(got.History))
	}
	if got.History[0].Name != command.CellsReady || got.History[1].Name != command.Update {
		t.Fatalf("history not in sequence order: %+v", got.History)
	}
}

func TestBuildReportForDestroyedRow(t *testing.T) {
	t.Parallel()

	g, j := newJournaledGrid(t)
	ctx := context.Background()

	row, err := g.Insert(g.TableSegment(), "alpha", command.Bottom)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := g.DestroyRow(row); err != nil {
		t.Fatalf("DestroyRow: %v", err)
	}

	out, err := BuildReport(ctx, g.Snapshot(), j, row)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(out, "Status      : gone") {
		t.Fatalf("expected gone status:\n%s", out)
	}
	if strings.Contains(out, "Segment") {
		t.Fatalf("gone row must not render placement:\n%s", out)
	}
	if !strings.Contains(out, "row/destroy -> "+row+" (delivered)") &&
		!strings.Contains(out, "row/destroy -> "+row+" (unhandled)") {
		t.Fatalf("destroy missing from history:\n%s", out)
	}
}

func TestBuildReportFromJournalAlone(t *testing.T) {
	t.Parallel()

	g, j := newJournaledGrid(t)
	ctx := context.Background()

	row, err := g.Insert(g.TableSegment(), "alpha", command.Bottom)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := g.UpdateRow(row, "beta"); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	out, err := BuildReport(ctx, store.Snapshot[string]{}, j, row)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(out, "Status      : offline") {
		t.Fatalf("expected offline status:\n%s", out)
	}
	if !strings.Contains(out, "row/update -> "+row) {
		t.Fatalf("update missing from history:\n%s", out)
	}
}

func TestBuildReportErrors(t *testing.T) {
	t.Parallel()

	g, j := newJournaledGrid(t)
	ctx := context.Background()

	if _, err := BuildReport(ctx, g.Snapshot(), j, " "); err == nil || !strings.Contains(err.Error(), "row_id is required") {
		t.Fatalf("expected row_id error, got %v", err)
	}
	if _, err := BuildReport(ctx, g.Snapshot(), j, "nope"); err == nil || !strings.Contains(err.Error(), `row "nope" not found`) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := BuildJSONReport(ctx, g.Snapshot(), nil, "nope"); err == nil {
		t.Fatal("expected not found error without history")
	}
}

func TestOverviewListsSegmentsAndRows(t *testing.T) {
	t.Parallel()

	g, _ := newJournaledGrid(t)
	seg, err := g.CreateSegment("notes")
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	row, err := g.Insert(seg, "n", command.Bottom)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := g.AddCells(row, 2); err != nil {
		t.Fatalf("AddCells: %v", err)
	}

	out := Overview(g.Snapshot())
	if !strings.HasPrefix(out, "Grid Overview (2 segment(s), 1 row(s), 2 cell(s))") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "owner=notes") || !strings.Contains(out, "owner=table") {
		t.Fatalf("segments missing:\n%s", out)
	}
	if !strings.Contains(out, row+"  cells=2") {
		t.Fatalf("row line missing:\n%s", out)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	build := func(data string) string {
		g, _ := newJournaledGrid(t)
		row, err := g.Insert(g.TableSegment(), data, command.Bottom)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if _, err := g.PopulateRow(row, 2); err != nil {
			t.Fatalf("PopulateRow: %v", err)
		}
		fp, err := Fingerprint(g.Snapshot())
		if err != nil {
			t.Fatalf("Fingerprint: %v", err)
		}
		return fp
	}

	a, b := build("same"), build("same")
	if a != b {
		t.Fatalf("equal grids gave different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(a))
	}
	if c := build("other"); c == a {
		t.Fatal("different data gave the same fingerprint")
	}
}
