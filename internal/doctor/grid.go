package doctor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/store"
)

// CheckGrid verifies the structural invariants of a grid snapshot: the
// segment chain, row membership, key order, the global row chain and the
// symmetry of every cell link.
func CheckGrid[T any](snap store.Snapshot[T]) *Result {
	r := &Result{Subject: "Grid"}

	checkChain(r, snap.Spaces)
	checkMembership(r, snap)
	checkKeys(r, snap)
	checkRowChain(r, snap.Rows)
	checkCells(r, snap)

	r.Valid = len(r.Errors) == 0
	return r
}

func checkChain(r *Result, spaces []store.Space) {
	for i, sp := range spaces {
		field := fmt.Sprintf("spaces.%s", sp.ID)
		wantTop, wantBottom := "", ""
		if i > 0 {
			wantTop = spaces[i-1].ID
		}
		if i+1 < len(spaces) {
			wantBottom = spaces[i+1].ID
		}
		if sp.Top != wantTop {
			r.addError("chain", field+".top", fmt.Sprintf("top is %q, want %q", sp.Top, wantTop))
		}
		if sp.Bottom != wantBottom {
			r.addError("chain", field+".bottom", fmt.Sprintf("bottom is %q, want %q", sp.Bottom, wantBottom))
		}
	}
}

func checkMembership[T any](r *Result, snap store.Snapshot[T]) {
	owner := make(map[string]string)
	for _, sp := range snap.Spaces {
		for _, id := range sp.RowIDs {
			if prev, dup := owner[id]; dup {
				r.addError("membership", "rows."+id,
					fmt.Sprintf("row listed by segments %q and %q", prev, sp.ID))
				continue
			}
			owner[id] = sp.ID
			if _, ok := snap.Row(id); !ok {
				r.addError("membership", "spaces."+sp.ID, fmt.Sprintf("lists unknown row %q", id))
			}
		}
	}
	for _, row := range snap.Rows {
		if owner[row.ID] != row.SpaceID {
			r.addError("membership", "rows."+row.ID,
				fmt.Sprintf("row claims segment %q but is listed by %q", row.SpaceID, owner[row.ID]))
		}
	}
}

// checkKeys requires every row key to sit inside its segment's band and
// each segment's RowIDs to be in descending key order.
func checkKeys[T any](r *Result, snap store.Snapshot[T]) {
	for _, sp := range snap.Spaces {
		var prev orderkey.Key
		for i, id := range sp.RowIDs {
			row, ok := snap.Row(id)
			if !ok {
				continue
			}
			if !sp.Range.Contains(row.Key) {
				r.addError("keys", "rows."+id,
					fmt.Sprintf("key %s outside the band of segment %q", row.Key, sp.ID))
			}
			if i > 0 && orderkey.Compare(prev, row.Key) <= 0 {
				r.addError("keys", "spaces."+sp.ID,
					fmt.Sprintf("row %q is out of order (key %s after %s)", id, row.Key, prev))
			}
			prev = row.Key
		}
	}
}

// checkRowChain requires the row links to follow the global visual order.
func checkRowChain[T any](r *Result, rows []store.Row[T]) {
	for i, row := range rows {
		wantTop, wantBottom := "", ""
		if i > 0 {
			wantTop = rows[i-1].ID
		}
		if i+1 < len(rows) {
			wantBottom = rows[i+1].ID
		}
		if row.Top != wantTop {
			r.addError("row_links", "rows."+row.ID+".top", fmt.Sprintf("top is %q, want %q", row.Top, wantTop))
		}
		if row.Bottom != wantBottom {
			r.addError("row_links", "rows."+row.ID+".bottom", fmt.Sprintf("bottom is %q, want %q", row.Bottom, wantBottom))
		}
	}
}

var coordinates = []store.Coordinate{store.Top, store.Bottom, store.Left, store.Right}

func checkCells[T any](r *Result, snap store.Snapshot[T]) {
	for _, row := range snap.Rows {
		for _, id := range row.Cells {
			c, ok := snap.Cells[id]
			if !ok {
				r.addError("cells", "rows."+row.ID, fmt.Sprintf("lists unknown cell %q", id))
				continue
			}
			if c.RowID != row.ID {
				r.addError("cells", "cells."+id, fmt.Sprintf("cell claims row %q but is listed by %q", c.RowID, row.ID))
			}
		}
	}

	for _, id := range slices.Sorted(maps.Keys(snap.Cells)) {
		c := snap.Cells[id]
		row, ok := snap.Row(c.RowID)
		if !ok || !slices.Contains(row.Cells, id) {
			r.addError("cells", "cells."+id, fmt.Sprintf("cell is not listed by row %q", c.RowID))
		}
		for _, coord := range coordinates {
			target := c.Link(coord)
			if target == "" {
				continue
			}
			field := fmt.Sprintf("cells.%s.%s", id, coord)
			if target == id {
				r.addError("cell_links", field, "cell links to itself")
				continue
			}
			other, ok := snap.Cells[target]
			if !ok {
				r.addError("cell_links", field, fmt.Sprintf("links to unknown cell %q", target))
				continue
			}
			if back := other.Link(coord.Opposite()); back != id {
				r.addError("cell_links", field,
					fmt.Sprintf("link to %q is not reciprocated (its %s is %q)", target, coord.Opposite(), back))
			}
		}
	}
}
