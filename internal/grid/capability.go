package grid

import (
	"cmp"
	"fmt"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/plugin"
	"github.com/mattjoyce/gridlink/internal/store"
)

// capability is the grid handle given to one plugin. Everything it
// dispatches carries the plugin's name as origin.
type capability[T any] struct {
	g       *Grid[T]
	name    string
	segment string
}

var _ plugin.Capability = (*capability[any])(nil)

// capabilityFor binds a capability to p, creating p's segment if it was
// added after start-up.
func (g *Grid[T]) capabilityFor(p plugin.Plugin) (plugin.Capability, error) {
	seg, ok := g.segs.ByOwner(p.Name())
	if !ok {
		var err error
		if seg, err = g.CreateSegment(p.Name()); err != nil {
			return nil, err
		}
	}
	return &capability[T]{g: g, name: p.Name(), segment: seg}, nil
}

func (c *capability[T]) Name() string    { return c.name }
func (c *capability[T]) Segment() string { return c.segment }

func (c *capability[T]) newCommand(kind command.Kind, name command.Name, targetID string, payload any) (command.Command, error) {
	cmd, err := command.New(kind, name, targetID, payload)
	if err != nil {
		return command.Command{}, err
	}
	return cmd.WithOrigin(c.name), nil
}

func (c *capability[T]) NewCellCommand(name command.Name, targetID string, payload any) (command.Command, error) {
	return c.newCommand(command.KindCell, name, targetID, payload)
}

func (c *capability[T]) NewRowCommand(name command.Name, targetID string, payload any) (command.Command, error) {
	return c.newCommand(command.KindRow, name, targetID, payload)
}

func (c *capability[T]) NewSpaceCommand(name command.Name, targetID string, payload any) (command.Command, error) {
	return c.newCommand(command.KindSpace, name, targetID, payload)
}

// Dispatch sends cmd stamped with the plugin's name.
func (c *capability[T]) Dispatch(cmd command.Command) command.Outcome {
	return c.g.Dispatch(cmd.WithOrigin(c.name))
}

// InsertRow inserts into the plugin's own segment.
func (c *capability[T]) InsertRow(data any, pos command.Position) (string, error) {
	return c.g.insert(c.segment, data, pos, c.name)
}

func (c *capability[T]) DeleteRow(rowID string) error {
	return c.g.rowCommand(command.Destroy, rowID, nil, c.name)
}

// CompareVertical returns -1 when cell a sits above cell b. Registered cells
// are compared by their row's key; unknown ids fall back to the key embedded
// in the id.
func (c *capability[T]) CompareVertical(a, b string) (int, error) {
	ka, errA := c.g.rowKeyOf(a)
	kb, errB := c.g.rowKeyOf(b)
	if errA != nil || errB != nil {
		return store.CompareVertical(a, b)
	}
	return orderkey.Compare(kb, ka), nil
}

// CompareHorizontal returns -1 when cell a sits left of cell b.
func (c *capability[T]) CompareHorizontal(a, b string) (int, error) {
	ca, okA := c.g.st.Cells.Get(a)
	cb, okB := c.g.st.Cells.Get(b)
	if !okA || !okB {
		return store.CompareHorizontal(a, b)
	}
	return cmp.Compare(ca.Column, cb.Column), nil
}

func (c *capability[T]) SegmentAbove(spaceID string) (string, bool) { return c.g.segs.Above(spaceID) }
func (c *capability[T]) SegmentBelow(spaceID string) (string, bool) { return c.g.segs.Below(spaceID) }

func (g *Grid[T]) rowKeyOf(cellID string) (orderkey.Key, error) {
	cell, ok := g.st.Cells.Get(cellID)
	if !ok {
		return nil, fmt.Errorf("cell %q: %w", cellID, ErrNotFound)
	}
	row, ok := g.st.Rows.Get(cell.RowID)
	if !ok {
		return nil, fmt.Errorf("row %q: %w", cell.RowID, ErrNotFound)
	}
	return row.Key, nil
}
