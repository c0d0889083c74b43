package segment

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/spatial"
	"github.com/mattjoyce/gridlink/internal/store"
)

func TestMain(m *testing.M) {
	log.SetupWith("error", "text", &bytes.Buffer{})
	os.Exit(m.Run())
}

type fixture struct {
	st  *store.Stores[string]
	sc  *spatial.Coordinator[string]
	mgr *Manager[string]
	seq int
}

func newFixture(t *testing.T, owners ...string) (*fixture, map[string]string) {
	t.Helper()
	f := &fixture{st: store.New[string]()}
	f.sc = spatial.New(f.st, nil)
	f.mgr = New(f.st, f.sc, WithIDs(func() string {
		f.seq++
		return fmt.Sprintf("id-%d", f.seq)
	}))
	ids := make(map[string]string, len(owners))
	for _, o := range owners {
		id, err := f.mgr.CreateSegment(o)
		require.NoError(t, err)
		ids[o] = id
	}
	return f, ids
}

// populate inserts a row and gives it n cells, then links them.
func (f *fixture) populate(t *testing.T, spaceID string, pos command.Position, n int) *store.Row[string] {
	t.Helper()
	row, err := f.mgr.Insert(spaceID, "", "", pos)
	require.NoError(t, err)
	for col := 0; col < n; col++ {
		id := store.CellID(row.Key, col)
		require.NoError(t, f.st.Cells.Add(id, &store.Cell{ID: id, RowID: row.ID, Column: col}))
		row.Cells = append(row.Cells, id)
	}
	_, err = f.mgr.LinkCells(row.ID)
	require.NoError(t, err)
	return row
}

func (f *fixture) cell(t *testing.T, id string) *store.Cell {
	t.Helper()
	c, ok := f.st.Cells.Get(id)
	require.True(t, ok)
	return c
}

func TestCreateSegmentChain(t *testing.T) {
	f, ids := newFixture(t, "D", "C", "table")

	assert.Equal(t, []string{ids["D"], ids["C"], ids["table"]}, f.mgr.Chain())

	d, _ := f.st.Spaces.Get(ids["D"])
	c, _ := f.st.Spaces.Get(ids["C"])
	tbl, _ := f.st.Spaces.Get(ids["table"])
	assert.Empty(t, d.Top)
	assert.Equal(t, ids["C"], d.Bottom)
	assert.Equal(t, ids["D"], c.Top)
	assert.Equal(t, ids["table"], c.Bottom)
	assert.Empty(t, tbl.Bottom)

	assert.True(t, c.Range.Lo.Less(d.Range.Lo), "later segments get lower bands")

	_, err := f.mgr.CreateSegment("C")
	assert.ErrorIs(t, err, ErrDuplicateOwner)

	above, ok := f.mgr.Above(ids["C"])
	assert.True(t, ok)
	assert.Equal(t, ids["D"], above)
	_, ok = f.mgr.Above(ids["D"])
	assert.False(t, ok)
	below, _ := f.mgr.Below(ids["C"])
	assert.Equal(t, ids["table"], below)
}

func TestInsertKeysMonotonic(t *testing.T) {
	f, ids := newFixture(t, "p")
	sp := ids["p"]

	var top, bottom []orderkey.Key
	first, err := f.mgr.Insert(sp, "", "", command.Bottom)
	require.NoError(t, err)
	top = append(top, first.Key)
	bottom = append(bottom, first.Key)

	for i := 0; i < 200; i++ {
		pos := command.Top
		if i%2 == 1 {
			pos = command.Bottom
		}
		row, err := f.mgr.Insert(sp, "", "", pos)
		require.NoError(t, err)
		if pos == command.Top {
			assert.True(t, top[len(top)-1].Less(row.Key), "top insertion must exceed every key")
			top = append(top, row.Key)
		} else {
			assert.True(t, row.Key.Less(bottom[len(bottom)-1]), "bottom insertion must undercut every key")
			bottom = append(bottom, row.Key)
		}
	}

	space, _ := f.st.Spaces.Get(sp)
	for i := 1; i < len(space.RowIDs); i++ {
		a, _ := f.st.Rows.Get(space.RowIDs[i-1])
		b, _ := f.st.Rows.Get(space.RowIDs[i])
		require.True(t, b.Key.Less(a.Key), "RowIDs must be in visual order")
	}
}

func TestInsertAfter(t *testing.T) {
	f, ids := newFixture(t, "p")
	sp := ids["p"]
	a, _ := f.mgr.Insert(sp, "a", "", command.Bottom)
	b, _ := f.mgr.Insert(sp, "b", "", command.Bottom)

	x, err := f.mgr.Insert(sp, "x", "", command.After("a"))
	require.NoError(t, err)
	assert.True(t, x.Key.Less(a.Key))
	assert.True(t, b.Key.Less(x.Key))

	y, err := f.mgr.Insert(sp, "y", "", command.After("b"))
	require.NoError(t, err)
	assert.True(t, y.Key.Less(b.Key))

	space, _ := f.st.Spaces.Get(sp)
	assert.Equal(t, []string{"a", "x", "b", "y"}, space.RowIDs)

	assert.Equal(t, "x", a.Bottom)
	assert.Equal(t, "a", x.Top)
	assert.Equal(t, "b", x.Bottom)
	assert.Equal(t, "x", b.Top)
}

func TestInsertErrors(t *testing.T) {
	f, ids := newFixture(t, "p", "q")
	_, err := f.mgr.Insert("nope", "", "", command.Top)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.mgr.Insert(ids["p"], "", "", command.After("ghost"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.mgr.Insert(ids["q"], "r1", "", command.Bottom)
	require.NoError(t, err)
	_, err = f.mgr.Insert(ids["p"], "", "", command.After("r1"))
	assert.ErrorIs(t, err, ErrNotInSegment)

	_, err = f.mgr.Insert(ids["p"], "r1", "", command.Bottom)
	assert.ErrorIs(t, err, store.ErrExists)

	space, _ := f.st.Spaces.Get(ids["p"])
	assert.Empty(t, space.RowIDs)
}

func TestRowLinksFollowGlobalOrder(t *testing.T) {
	f, ids := newFixture(t, "top", "mid", "table")
	t1, _ := f.mgr.Insert(ids["top"], "t1", "", command.Bottom)
	tb, _ := f.mgr.Insert(ids["table"], "tb", "", command.Bottom)
	assert.Equal(t, "tb", t1.Bottom)
	assert.Equal(t, "t1", tb.Top)

	m1, _ := f.mgr.Insert(ids["mid"], "m1", "", command.Top)
	assert.Equal(t, "m1", t1.Bottom)
	assert.Equal(t, "t1", m1.Top)
	assert.Equal(t, "tb", m1.Bottom)
	assert.Equal(t, "m1", tb.Top)
}

func TestCrossSegmentSkipsEmptySegments(t *testing.T) {
	f, ids := newFixture(t, "D", "C", "B", "A", "table")
	d := f.populate(t, ids["D"], command.Bottom, 3)
	tbl := f.populate(t, ids["table"], command.Bottom, 3)

	// D and table are linked directly while everything between is empty.
	for i := range d.Cells {
		assert.Equal(t, tbl.Cells[i], f.cell(t, d.Cells[i]).Bottom)
	}

	b := f.populate(t, ids["B"], command.Bottom, 3)

	for i := range b.Cells {
		bc := f.cell(t, b.Cells[i])
		assert.Equal(t, d.Cells[i], bc.Top)
		assert.Equal(t, tbl.Cells[i], bc.Bottom)
		assert.Equal(t, b.Cells[i], f.cell(t, d.Cells[i]).Bottom)
		assert.Equal(t, b.Cells[i], f.cell(t, tbl.Cells[i]).Top)
	}
	assert.Equal(t, b.ID, d.Bottom)
	assert.Equal(t, b.ID, tbl.Top)

	above, ok := f.mgr.NearestPopulatedAbove(ids["A"])
	assert.True(t, ok)
	assert.Equal(t, ids["B"], above)
}

func TestLinkCellsEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, f *fixture, ids map[string]string)
		pos       command.Position
		wantAbove bool
		wantBelow bool
	}{
		{
			name:  "all segments empty",
			setup: func(*testing.T, *fixture, map[string]string) {},
			pos:   command.Bottom,
		},
		{
			name: "only above populated",
			setup: func(t *testing.T, f *fixture, ids map[string]string) {
				f.populate(t, ids["up"], command.Bottom, 2)
			},
			pos:       command.Bottom,
			wantAbove: true,
		},
		{
			name: "only below populated",
			setup: func(t *testing.T, f *fixture, ids map[string]string) {
				f.populate(t, ids["down"], command.Bottom, 2)
			},
			pos:       command.Bottom,
			wantBelow: true,
		},
		{
			name: "both sides through empty gaps",
			setup: func(t *testing.T, f *fixture, ids map[string]string) {
				f.populate(t, ids["up"], command.Bottom, 2)
				f.populate(t, ids["down"], command.Bottom, 2)
			},
			pos:       command.Top,
			wantAbove: true,
			wantBelow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ids := newFixture(t, "up", "gap1", "target", "gap2", "down")
			tt.setup(t, f, ids)
			row := f.populate(t, ids["target"], tt.pos, 2)

			for _, id := range row.Cells {
				c := f.cell(t, id)
				assert.Equal(t, tt.wantAbove, c.Top != "", "top link of %s", id)
				assert.Equal(t, tt.wantBelow, c.Bottom != "", "bottom link of %s", id)
			}
		})
	}
}

func TestLinkCellsPositionPicksInteriorNeighbour(t *testing.T) {
	f, ids := newFixture(t, "up", "target", "down")
	up := f.populate(t, ids["up"], command.Bottom, 1)
	down := f.populate(t, ids["down"], command.Bottom, 1)
	first := f.populate(t, ids["target"], command.Bottom, 1)

	top := f.populate(t, ids["target"], command.Top, 1)
	links, err := f.mgr.LinkCells(top.ID)
	require.NoError(t, err)
	assert.Equal(t, up.ID, links.Above)
	assert.Equal(t, first.ID, links.Below)

	bottom := f.populate(t, ids["target"], command.Bottom, 1)
	links, err = f.mgr.LinkCells(bottom.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, links.Above)
	assert.Equal(t, down.ID, links.Below)
}

func TestLinkCellsMismatchIsNoop(t *testing.T) {
	f, ids := newFixture(t, "up", "target")
	up := f.populate(t, ids["up"], command.Bottom, 2)
	row := f.populate(t, ids["target"], command.Bottom, 3)

	links, err := f.mgr.LinkCells(row.ID)
	require.NoError(t, err)
	assert.Equal(t, up.ID, links.Above)
	assert.False(t, links.LinkedAbove)
	assert.Empty(t, f.cell(t, row.Cells[0]).Top)
	assert.Equal(t, row.Cells[1], f.cell(t, row.Cells[0]).Right)
}

func TestRemoveRoundTrip(t *testing.T) {
	f, ids := newFixture(t, "up", "p", "down")
	before := map[string]store.Space{}
	for _, id := range f.mgr.Chain() {
		sp, _ := f.st.Spaces.Get(id)
		before[id] = sp.Clone()
	}

	var rows []string
	for i := 0; i < 5; i++ {
		row, err := f.mgr.Insert(ids["p"], "", "", command.Bottom)
		require.NoError(t, err)
		rows = append(rows, row.ID)
	}
	for _, id := range rows {
		f.sc.RepairDestroyed(id)
		require.NoError(t, f.mgr.Remove(id))
		f.st.Rows.Delete(id)
	}

	for _, id := range f.mgr.Chain() {
		sp, _ := f.st.Spaces.Get(id)
		want := before[id]
		if diff := cmp.Diff(want.Top, sp.Top); diff != "" {
			t.Errorf("space %s top changed (-want +got):\n%s", id, diff)
		}
		if diff := cmp.Diff(want.Bottom, sp.Bottom); diff != "" {
			t.Errorf("space %s bottom changed (-want +got):\n%s", id, diff)
		}
		assert.Empty(t, sp.RowIDs)
	}
	assert.ErrorIs(t, f.mgr.Remove("gone"), store.ErrNotFound)
}

func TestByOwner(t *testing.T) {
	f, ids := newFixture(t, "audit", "table")
	id, ok := f.mgr.ByOwner("table")
	assert.True(t, ok)
	assert.Equal(t, ids["table"], id)
	_, ok = f.mgr.ByOwner("nobody")
	assert.False(t, ok)
}

func TestDropSegment(t *testing.T) {
	f, ids := newFixture(t, "top", "mid", "table", "tail")
	f.populate(t, ids["table"], command.Bottom, 1)

	require.NoError(t, f.mgr.DropSegment(ids["mid"]))
	assert.Equal(t, []string{ids["top"], ids["table"], ids["tail"]}, f.mgr.Chain())
	top, _ := f.st.Spaces.Get(ids["top"])
	tbl, _ := f.st.Spaces.Get(ids["table"])
	assert.Equal(t, ids["table"], top.Bottom)
	assert.Equal(t, ids["top"], tbl.Top)
	assert.False(t, f.st.Spaces.Has(ids["mid"]))

	require.NoError(t, f.mgr.DropSegment(ids["tail"]))
	require.NoError(t, f.mgr.DropSegment(ids["top"]))
	assert.Equal(t, []string{ids["table"]}, f.mgr.Chain())
	tbl, _ = f.st.Spaces.Get(ids["table"])
	assert.Empty(t, tbl.Top)
	assert.Empty(t, tbl.Bottom)

	assert.ErrorIs(t, f.mgr.DropSegment(ids["table"]), ErrNotEmpty)
	assert.ErrorIs(t, f.mgr.DropSegment(ids["mid"]), store.ErrNotFound)

	// a segment created afterwards still lands at the bottom
	late, err := f.mgr.CreateSegment("late")
	require.NoError(t, err)
	assert.Equal(t, []string{ids["table"], late}, f.mgr.Chain())
}
