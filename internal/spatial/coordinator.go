// Package spatial keeps the adjacency graph of a grid consistent: the
// four-directional links between cells and the vertical links between rows.
//
// Operations only touch link fields; they never create or delete entities.
// Every link is written on both ends, and writing a link first detaches
// whatever the two ends were linked to before, so a cell or row is never
// half-linked. Unknown ids are a logged no-op.
package spatial

import (
	"log/slog"

	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/store"
)

// Coordinator maintains links over one grid's stores.
type Coordinator[T any] struct {
	st     *store.Stores[T]
	logger *slog.Logger
}

// New creates a coordinator over st. A nil logger uses the global one.
func New[T any](st *store.Stores[T], logger *slog.Logger) *Coordinator[T] {
	if logger == nil {
		logger = log.WithComponent("spatial")
	}
	return &Coordinator[T]{st: st, logger: logger}
}

// LinkVertical makes topID sit directly above bottomID.
func (c *Coordinator[T]) LinkVertical(topID, bottomID string) bool {
	return c.linkCells(topID, store.Bottom, bottomID)
}

// LinkHorizontal makes leftID sit directly left of rightID.
func (c *Coordinator[T]) LinkHorizontal(leftID, rightID string) bool {
	return c.linkCells(leftID, store.Right, rightID)
}

func (c *Coordinator[T]) linkCells(aID string, dir store.Coordinate, bID string) bool {
	if aID == bID {
		c.logger.Warn("refusing to link cell to itself", "cell", aID)
		return false
	}
	a, ok := c.st.Cells.Get(aID)
	if !ok {
		c.logger.Warn("link skipped: unknown cell", "cell", aID)
		return false
	}
	b, ok := c.st.Cells.Get(bID)
	if !ok {
		c.logger.Warn("link skipped: unknown cell", "cell", bID)
		return false
	}
	opp := dir.Opposite()
	c.detachCell(a, dir)
	c.detachCell(b, opp)
	a.SetLink(dir, bID)
	b.SetLink(opp, aID)
	return true
}

// detachCell clears cell's link in dir and the partner's back-reference.
func (c *Coordinator[T]) detachCell(cell *store.Cell, dir store.Coordinate) {
	old := cell.Link(dir)
	if old == "" {
		return
	}
	if partner, ok := c.st.Cells.Get(old); ok && partner.Link(dir.Opposite()) == cell.ID {
		partner.SetLink(dir.Opposite(), "")
	}
	cell.SetLink(dir, "")
}

// LinkRows makes topRowID sit directly above bottomRowID at row level.
func (c *Coordinator[T]) LinkRows(topRowID, bottomRowID string) bool {
	if topRowID == bottomRowID {
		c.logger.Warn("refusing to link row to itself", "row", topRowID)
		return false
	}
	top, ok := c.st.Rows.Get(topRowID)
	if !ok {
		c.logger.Warn("link skipped: unknown row", "row", topRowID)
		return false
	}
	bottom, ok := c.st.Rows.Get(bottomRowID)
	if !ok {
		c.logger.Warn("link skipped: unknown row", "row", bottomRowID)
		return false
	}
	c.detachRow(top, store.Bottom)
	c.detachRow(bottom, store.Top)
	top.Bottom = bottomRowID
	bottom.Top = topRowID
	return true
}

func (c *Coordinator[T]) detachRow(row *store.Row[T], dir store.Coordinate) {
	switch dir {
	case store.Top:
		if row.Top == "" {
			return
		}
		if partner, ok := c.st.Rows.Get(row.Top); ok && partner.Bottom == row.ID {
			partner.Bottom = ""
		}
		row.Top = ""
	case store.Bottom:
		if row.Bottom == "" {
			return
		}
		if partner, ok := c.st.Rows.Get(row.Bottom); ok && partner.Top == row.ID {
			partner.Top = ""
		}
		row.Bottom = ""
	}
}

// LinkRowsCells links topCells[i] above bottomCells[i] for every i. Arrays of
// different length leave everything untouched: a row whose cells are still
// being built must not disturb its neighbours.
func (c *Coordinator[T]) LinkRowsCells(topCells, bottomCells []string) bool {
	if len(topCells) != len(bottomCells) {
		c.logger.Warn("cell count mismatch, rows not linked at cell level",
			"top_cells", len(topCells), "bottom_cells", len(bottomCells))
		return false
	}
	for i := range topCells {
		c.LinkVertical(topCells[i], bottomCells[i])
	}
	return true
}

// LinkRowCellsHorizontal chains a row's cells left to right.
func (c *Coordinator[T]) LinkRowCellsHorizontal(rowID string) {
	row, ok := c.st.Rows.Get(rowID)
	if !ok {
		c.logger.Warn("link skipped: unknown row", "row", rowID)
		return
	}
	for i := 1; i < len(row.Cells); i++ {
		c.LinkHorizontal(row.Cells[i-1], row.Cells[i])
	}
}

// ClearCoordinate nulls one link field of one cell. The former neighbour is
// not touched, since it may already be gone.
func (c *Coordinator[T]) ClearCoordinate(cellID string, coord store.Coordinate) {
	cell, ok := c.st.Cells.Get(cellID)
	if !ok {
		c.logger.Warn("clear skipped: unknown cell", "cell", cellID)
		return
	}
	cell.SetLink(coord, "")
}

// ClearRowCoordinate nulls a row's Top or Bottom link.
func (c *Coordinator[T]) ClearRowCoordinate(rowID string, coord store.Coordinate) {
	row, ok := c.st.Rows.Get(rowID)
	if !ok {
		c.logger.Warn("clear skipped: unknown row", "row", rowID)
		return
	}
	switch coord {
	case store.Top:
		row.Top = ""
	case store.Bottom:
		row.Bottom = ""
	}
}

// RepairDestroyed reconnects the neighbours of a row that is about to be
// removed. It must run while the row and its cells are still registered.
func (c *Coordinator[T]) RepairDestroyed(rowID string) {
	row, ok := c.st.Rows.Get(rowID)
	if !ok {
		c.logger.Warn("repair skipped: unknown row", "row", rowID)
		return
	}
	topID, bottomID := row.Top, row.Bottom

	for _, cellID := range row.Cells {
		c.releaseCell(cellID)
	}
	c.detachRow(row, store.Top)
	c.detachRow(row, store.Bottom)

	top, hasTop := c.st.Rows.Get(topID)
	bottom, hasBottom := c.st.Rows.Get(bottomID)

	switch {
	case hasTop && hasBottom:
		c.LinkRows(topID, bottomID)
		c.LinkRowsCells(top.Cells, bottom.Cells)
	case hasTop:
		c.ClearRowCoordinate(topID, store.Bottom)
		for _, id := range top.Cells {
			c.ClearCoordinate(id, store.Bottom)
		}
	case hasBottom:
		c.ClearRowCoordinate(bottomID, store.Top)
		for _, id := range bottom.Cells {
			c.ClearCoordinate(id, store.Top)
		}
	}
	c.logger.Debug("row links repaired", "row", rowID, "top", topID, "bottom", bottomID)
}

// releaseCell drops every neighbour's reference to cellID.
func (c *Coordinator[T]) releaseCell(cellID string) {
	cell, ok := c.st.Cells.Get(cellID)
	if !ok {
		return
	}
	for _, coord := range []store.Coordinate{store.Top, store.Bottom, store.Left, store.Right} {
		c.detachCell(cell, coord)
	}
}
