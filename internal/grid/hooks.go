package grid

import (
	"fmt"
	"slices"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/events"
	"github.com/mattjoyce/gridlink/internal/store"
)

// rowGauge is implemented by recorders that track the live row count.
type rowGauge interface {
	RowsLive(n int)
}

// reject records err as the cause read back by result. A command that
// reaches Before clears any earlier cause of its kind first.
func (g *Grid[T]) reject(kind command.Kind, err error) error {
	g.rejected[kind] = err
	return err
}

func (g *Grid[T]) beforeSpace(cmd command.Command) error {
	delete(g.rejected, cmd.Kind)
	sp, ok := g.st.Spaces.Get(cmd.TargetID)
	if !ok {
		return g.reject(cmd.Kind, fmt.Errorf("segment %q: %w", cmd.TargetID, ErrNotFound))
	}
	if cmd.Name != command.Insert {
		return nil
	}

	p, err := insertPayload(cmd.Payload)
	if err != nil {
		return g.reject(cmd.Kind, err)
	}
	if cmd.Origin != "" && sp.Owner != cmd.Origin {
		return g.reject(cmd.Kind, fmt.Errorf("plugin %q cannot insert into segment owned by %q", cmd.Origin, sp.Owner))
	}
	data, err := dataOf[T](p.Data)
	if err != nil {
		return g.reject(cmd.Kind, err)
	}
	row, err := g.segs.Insert(sp.ID, p.RowID, data, p.Position)
	if err != nil {
		return g.reject(cmd.Kind, err)
	}

	g.gauge()
	g.opts.Events.Publish(events.RowInserted, map[string]any{
		"row":      row.ID,
		"segment":  sp.ID,
		"key":      row.Key.String(),
		"position": p.Position.String(),
		"top":      row.Top,
		"bottom":   row.Bottom,
	})
	return nil
}

func (g *Grid[T]) afterSpace(cmd command.Command) {
	if cmd.Name != command.Clear {
		return
	}
	sp, ok := g.st.Spaces.Get(cmd.TargetID)
	if !ok {
		return
	}
	for _, id := range slices.Clone(sp.RowIDs) {
		if err := g.rowCommand(command.Destroy, id, nil, cmd.Origin); err != nil {
			g.logger.Info("row kept during clear", "segment", sp.ID, "row", id, "error", err)
		}
	}
}

func (g *Grid[T]) beforeRow(cmd command.Command) error {
	delete(g.rejected, cmd.Kind)
	row, ok := g.st.Rows.Get(cmd.TargetID)
	if !ok {
		return g.reject(cmd.Kind, fmt.Errorf("row %q: %w", cmd.TargetID, ErrNotFound))
	}

	switch cmd.Name {
	case command.Destroy:
		g.detach(row)
	case command.Update:
		data, err := dataOf[T](cmd.Payload)
		if err != nil {
			return g.reject(cmd.Kind, err)
		}
		row.Data = data
		g.opts.Events.Publish(events.RowUpdated, map[string]any{"row": row.ID})
	case command.CellsReady:
		links, err := g.segs.LinkCells(row.ID)
		if err != nil {
			return g.reject(cmd.Kind, err)
		}
		g.opts.Events.Publish(events.CellsLinked, map[string]any{
			"row":          row.ID,
			"above":        links.Above,
			"below":        links.Below,
			"linked_above": links.LinkedAbove,
			"linked_below": links.LinkedBelow,
		})
	}
	return nil
}

func (g *Grid[T]) afterRow(cmd command.Command) {
	if cmd.Name == command.Destroy {
		g.release(cmd.TargetID)
	}
}

// detach repairs the links around row and removes it and its cells from
// the stores, its segment and the cell bus. The row handler stays so the
// destroy command can still be delivered; anything that handler dispatches
// no longer sees the row.
func (g *Grid[T]) detach(row *store.Row[T]) {
	g.coord.RepairDestroyed(row.ID)
	if err := g.segs.Remove(row.ID); err != nil {
		g.logger.Warn("row missing from its segment", "row", row.ID, "error", err)
	}
	for _, id := range row.Cells {
		g.st.Cells.Delete(id)
		g.cells.Unregister(id)
	}
	g.st.Rows.Delete(row.ID)
	g.dying[row.ID] = row
	g.gauge()
}

// release unregisters a detached row's handler once destroy was delivered.
func (g *Grid[T]) release(rowID string) {
	row, ok := g.dying[rowID]
	if !ok {
		return
	}
	delete(g.dying, rowID)
	g.rows.Unregister(rowID)

	g.opts.Events.Publish(events.RowDestroyed, map[string]any{
		"row":     rowID,
		"segment": row.SpaceID,
		"cells":   len(row.Cells),
	})
}

func (g *Grid[T]) gauge() {
	if rg, ok := g.opts.Recorder.(rowGauge); ok {
		rg.RowsLive(g.st.Rows.Len())
	}
}

func insertPayload(v any) (command.InsertPayload, error) {
	switch p := v.(type) {
	case command.InsertPayload:
		return p, nil
	case *command.InsertPayload:
		if p != nil {
			return *p, nil
		}
	}
	return command.InsertPayload{}, fmt.Errorf("insert payload is %T, want command.InsertPayload", v)
}

// dataOf converts a command payload into row data. nil means the zero value.
func dataOf[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if d, ok := v.(T); ok {
		return d, nil
	}
	return zero, fmt.Errorf("row data is %T, want %T", v, zero)
}
