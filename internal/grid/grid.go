// Package grid composes the entity stores, command buses, spatial
// coordinator, segment manager and plugins of one grid instance.
//
// Structural effects are applied by bus hooks, never by handlers: a
// space/insert creates the row, row/update stores new data, row/cells_ready
// links cells across segments and row/destroy repairs links and removes the
// row from every store before delivery, unregistering its handlers after it.
// Handlers registered by collaborators only observe. A blocked command therefore never changes the grid.
//
// A Grid is single-threaded. Callers that share one across goroutines must
// serialise access themselves.
package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/gridlink/internal/bus"
	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/events"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/plugin"
	"github.com/mattjoyce/gridlink/internal/segment"
	"github.com/mattjoyce/gridlink/internal/spatial"
	"github.com/mattjoyce/gridlink/internal/store"
)

var (
	// ErrBlocked means an interceptor blocked the command.
	ErrBlocked = errors.New("command blocked by plugin")
	// ErrRejected means the command was accepted but could not be applied.
	ErrRejected = errors.New("command rejected")
	// ErrNotFound is store.ErrNotFound.
	ErrNotFound = store.ErrNotFound
	// ErrNegativeCells means a negative cell count was requested.
	ErrNegativeCells = errors.New("cell count must not be negative")
)

// DefaultTableOwner owns the base segment, which always sits at the bottom.
const DefaultTableOwner = "table"

// Options configures a Grid. The zero value is usable.
type Options struct {
	TableOwner string
	KeyStep    uint32
	Logger     *slog.Logger
	Clock      func() time.Time
	NewID      func() string
	Events     events.Publisher
	Recorder   bus.Recorder
	Observers  []bus.Observer
}

func (o *Options) defaults() {
	if o.TableOwner == "" {
		o.TableOwner = DefaultTableOwner
	}
	if o.KeyStep == 0 {
		o.KeyStep = orderkey.DefaultStep
	}
	if o.Logger == nil {
		o.Logger = log.WithComponent("grid")
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Events == nil {
		o.Events = events.Discard{}
	}
}

// Grid is one grid instance carrying row data of type T.
type Grid[T any] struct {
	opts    Options
	st      *store.Stores[T]
	coord   *spatial.Coordinator[T]
	segs    *segment.Manager[T]
	plugins *plugin.Manager

	cells  *bus.Bus
	rows   *bus.Bus
	spaces *bus.Bus

	table  string
	logger *slog.Logger

	// last structural rejection per bus kind, read back by the typed helpers
	rejected map[command.Kind]error
	// rows detached by a destroy whose delivery is still running
	dying map[string]*store.Row[T]
}

// New builds a grid. Plugin configuration errors abort before any segment
// exists. One segment is created per plugin in resolved order, then the
// table segment, and plugins are initialised in the same order.
func New[T any](opts Options, plugins ...plugin.Plugin) (*Grid[T], error) {
	opts.defaults()

	g := &Grid[T]{
		opts:     opts,
		st:       store.New[T](),
		plugins:  plugin.NewManager(opts.Logger.With(slog.String("component", "plugin"))),
		logger:   opts.Logger,
		rejected: make(map[command.Kind]error),
		dying:    make(map[string]*store.Row[T]),
	}
	if err := g.plugins.Add(plugins...); err != nil {
		return nil, fmt.Errorf("resolve plugins: %w", err)
	}
	if _, clash := g.plugins.Get(opts.TableOwner); clash {
		return nil, fmt.Errorf("plugin name %q is reserved for the table segment", opts.TableOwner)
	}

	g.coord = spatial.New(g.st, opts.Logger.With(slog.String("component", "spatial")))
	g.segs = segment.New(g.st, g.coord,
		segment.WithStep(opts.KeyStep),
		segment.WithIDs(opts.NewID),
		segment.WithLogger(opts.Logger.With(slog.String("component", "segment"))),
	)

	g.cells = g.newBus(command.KindCell, bus.Hooks{})
	g.rows = g.newBus(command.KindRow, bus.Hooks{Before: g.beforeRow, After: g.afterRow})
	g.spaces = g.newBus(command.KindSpace, bus.Hooks{Before: g.beforeSpace, After: g.afterSpace})

	for _, p := range g.plugins.Order() {
		if _, err := g.CreateSegment(p.Name()); err != nil {
			return nil, err
		}
	}
	table, err := g.CreateSegment(opts.TableOwner)
	if err != nil {
		return nil, err
	}
	g.table = table

	if err := g.plugins.Start(g.capabilityFor); err != nil {
		return nil, fmt.Errorf("start plugins: %w", err)
	}
	g.logger.Info("grid ready", "plugins", g.plugins.Names(), "segments", len(g.segs.Chain()))
	return g, nil
}

func (g *Grid[T]) newBus(kind command.Kind, hooks bus.Hooks) *bus.Bus {
	opts := []bus.Option{
		bus.WithClock(g.opts.Clock),
		bus.WithHooks(hooks),
		bus.WithLogger(g.logger.With(slog.String("component", "bus"), slog.String("kind", string(kind)))),
		bus.WithObserver(g.observe),
	}
	if g.opts.Recorder != nil {
		opts = append(opts, bus.WithRecorder(g.opts.Recorder))
	}
	for _, o := range g.opts.Observers {
		opts = append(opts, bus.WithObserver(o))
	}
	return bus.New(kind, g.plugins, opts...)
}

func (g *Grid[T]) observe(cmd command.Command, outcome command.Outcome) {
	if outcome == command.Blocked {
		g.opts.Events.Publish(events.CommandBlocked, map[string]any{
			"kind":   cmd.Kind,
			"name":   cmd.Name,
			"target": cmd.TargetID,
			"origin": cmd.Origin,
		})
	}
}

// CreateSegment appends a segment for owner at the bottom of the chain.
func (g *Grid[T]) CreateSegment(owner string) (string, error) {
	id, err := g.segs.CreateSegment(owner)
	if err != nil {
		return "", err
	}
	g.opts.Events.Publish(events.SegmentCreated, map[string]any{"segment": id, "owner": owner})
	return id, nil
}

// AddPlugin registers and initialises a plugin on a running grid. Its
// segment is appended below every existing segment, the table included.
// When Init fails the segment made for it is dropped again, unless Init
// already inserted rows into it.
func (g *Grid[T]) AddPlugin(p plugin.Plugin) error {
	if p.Name() == g.opts.TableOwner {
		return fmt.Errorf("plugin name %q is reserved for the table segment", p.Name())
	}
	_, existed := g.segs.ByOwner(p.Name())
	if err := g.plugins.Add(p); err != nil {
		if seg, made := g.segs.ByOwner(p.Name()); made && !existed {
			g.dropSegment(seg)
		}
		return err
	}
	if _, ok := g.segs.ByOwner(p.Name()); !ok {
		if _, err := g.CreateSegment(p.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grid[T]) dropSegment(id string) {
	if err := g.segs.DropSegment(id); err != nil {
		g.logger.Warn("segment of failed plugin kept", "segment", id, "error", err)
		return
	}
	g.opts.Events.Publish(events.SegmentDropped, map[string]any{"segment": id})
}

// RemovePlugin destroys and unregisters a plugin. Its segment and rows stay.
func (g *Grid[T]) RemovePlugin(name string) error {
	return g.plugins.Remove(name)
}

// Plugins returns plugin names in interception order.
func (g *Grid[T]) Plugins() []string { return g.plugins.Names() }

// Close destroys plugins in reverse order.
func (g *Grid[T]) Close() error {
	return g.plugins.Stop()
}

// Dispatch routes cmd to the bus of its kind.
func (g *Grid[T]) Dispatch(cmd command.Command) command.Outcome {
	switch cmd.Kind {
	case command.KindCell:
		return g.dispatchOn(g.cells, cmd)
	case command.KindRow:
		return g.dispatchOn(g.rows, cmd)
	case command.KindSpace:
		return g.dispatchOn(g.spaces, cmd)
	}
	g.logger.Warn("dispatch of unknown kind", "command", cmd.String())
	return command.Invalid
}

// DispatchCell sends cmd through the cell bus.
func (g *Grid[T]) DispatchCell(cmd command.Command) command.Outcome {
	cmd.Kind = command.KindCell
	return g.dispatchOn(g.cells, cmd)
}

// DispatchRow sends cmd through the row bus.
func (g *Grid[T]) DispatchRow(cmd command.Command) command.Outcome {
	cmd.Kind = command.KindRow
	return g.dispatchOn(g.rows, cmd)
}

// DispatchSpace sends cmd through the space bus.
func (g *Grid[T]) DispatchSpace(cmd command.Command) command.Outcome {
	cmd.Kind = command.KindSpace
	return g.dispatchOn(g.spaces, cmd)
}

// dispatchOn serves callers that only see the outcome, so a rejection
// cause is dropped rather than left for a later helper call.
func (g *Grid[T]) dispatchOn(b *bus.Bus, cmd command.Command) command.Outcome {
	out := b.Dispatch(cmd)
	if out == command.Rejected {
		delete(g.rejected, cmd.Kind)
	}
	return out
}

func (g *Grid[T]) RegisterCell(id string, h bus.Handler)  { g.cells.Register(id, h) }
func (g *Grid[T]) RegisterRow(id string, h bus.Handler)   { g.rows.Register(id, h) }
func (g *Grid[T]) RegisterSpace(id string, h bus.Handler) { g.spaces.Register(id, h) }
func (g *Grid[T]) UnregisterCell(id string)               { g.cells.Unregister(id) }
func (g *Grid[T]) UnregisterRow(id string)                { g.rows.Unregister(id) }
func (g *Grid[T]) UnregisterSpace(id string)              { g.spaces.Unregister(id) }

// Insert adds a row to spaceID as the host and returns its id.
func (g *Grid[T]) Insert(spaceID string, data T, pos command.Position) (string, error) {
	return g.insert(spaceID, data, pos, "")
}

func (g *Grid[T]) insert(spaceID string, data any, pos command.Position, origin string) (string, error) {
	rowID := g.opts.NewID()
	cmd, err := command.New(command.KindSpace, command.Insert, spaceID, command.InsertPayload{
		RowID:    rowID,
		Data:     data,
		Position: pos,
	})
	if err != nil {
		return "", err
	}
	if err := g.result(g.spaces.Dispatch(cmd.WithOrigin(origin)), cmd); err != nil {
		return "", err
	}
	return rowID, nil
}

// DestroyRow removes a row, reconnecting its neighbours.
func (g *Grid[T]) DestroyRow(rowID string) error {
	return g.rowCommand(command.Destroy, rowID, nil, "")
}

// UpdateRow replaces a row's data.
func (g *Grid[T]) UpdateRow(rowID string, data T) error {
	return g.rowCommand(command.Update, rowID, data, "")
}

// CellsReady tells the grid that rowID's cells are populated, linking them
// to the neighbouring rows.
func (g *Grid[T]) CellsReady(rowID string) error {
	return g.rowCommand(command.CellsReady, rowID, nil, "")
}

// ClearSegment destroys every row of spaceID. Each destroy is dispatched
// separately, so plugins may keep individual rows.
func (g *Grid[T]) ClearSegment(spaceID string) error {
	cmd, err := command.New(command.KindSpace, command.Clear, spaceID, nil)
	if err != nil {
		return err
	}
	return g.result(g.spaces.Dispatch(cmd), cmd)
}

func (g *Grid[T]) rowCommand(name command.Name, rowID string, payload any, origin string) error {
	cmd, err := command.New(command.KindRow, name, rowID, payload)
	if err != nil {
		return err
	}
	return g.result(g.rows.Dispatch(cmd.WithOrigin(origin)), cmd)
}

// result maps an outcome onto the helper error contract.
func (g *Grid[T]) result(out command.Outcome, cmd command.Command) error {
	switch out {
	case command.Blocked:
		return fmt.Errorf("%s: %w", cmd.String(), ErrBlocked)
	case command.Rejected:
		cause := g.rejected[cmd.Kind]
		delete(g.rejected, cmd.Kind)
		if cause == nil {
			return fmt.Errorf("%s: %w", cmd.String(), ErrRejected)
		}
		return fmt.Errorf("%s: %w: %w", cmd.String(), ErrRejected, cause)
	case command.Invalid:
		return fmt.Errorf("%s: invalid command", cmd.String())
	}
	return nil
}

// AddCells creates n cells at the end of rowID's cell list. Cells appear
// here once the rendering side has built them; links follow on CellsReady.
func (g *Grid[T]) AddCells(rowID string, n int) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("add %d cells to row %q: %w", n, rowID, ErrNegativeCells)
	}
	row, ok := g.st.Rows.Get(rowID)
	if !ok {
		return nil, fmt.Errorf("row %q: %w", rowID, ErrNotFound)
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		col := len(row.Cells)
		id := store.CellID(row.Key, col)
		if err := g.st.Cells.Add(id, &store.Cell{ID: id, RowID: rowID, Column: col}); err != nil {
			return ids, fmt.Errorf("add cell: %w", err)
		}
		row.Cells = append(row.Cells, id)
		ids = append(ids, id)
	}
	g.opts.Events.Publish(events.CellsAdded, map[string]any{"row": rowID, "cells": ids})
	return ids, nil
}

// PopulateRow adds n cells and signals that they are ready.
func (g *Grid[T]) PopulateRow(rowID string, n int) ([]string, error) {
	ids, err := g.AddCells(rowID, n)
	if err != nil {
		return ids, err
	}
	return ids, g.CellsReady(rowID)
}

// Cell returns a copy of a cell.
func (g *Grid[T]) Cell(id string) (store.Cell, bool) {
	c, ok := g.st.Cells.Get(id)
	if !ok {
		return store.Cell{}, false
	}
	return *c, true
}

// Row returns a copy of a row.
func (g *Grid[T]) Row(id string) (store.Row[T], bool) {
	r, ok := g.st.Rows.Get(id)
	if !ok {
		return store.Row[T]{}, false
	}
	return r.Clone(), true
}

// Space returns a copy of a space.
func (g *Grid[T]) Space(id string) (store.Space, bool) {
	sp, ok := g.st.Spaces.Get(id)
	if !ok {
		return store.Space{}, false
	}
	return sp.Clone(), true
}

func (g *Grid[T]) CellIDs() []string  { return g.st.Cells.IDs() }
func (g *Grid[T]) RowIDs() []string   { return g.st.Rows.IDs() }
func (g *Grid[T]) SpaceIDs() []string { return g.st.Spaces.IDs() }

// Segments returns segment ids from top to bottom.
func (g *Grid[T]) Segments() []string { return g.segs.Chain() }

// TableSegment returns the id of the base segment.
func (g *Grid[T]) TableSegment() string { return g.table }

// SegmentOf returns the segment owned by owner.
func (g *Grid[T]) SegmentOf(owner string) (string, bool) { return g.segs.ByOwner(owner) }

// Snapshot copies the whole grid.
func (g *Grid[T]) Snapshot() store.Snapshot[T] {
	return g.st.Snapshot(g.segs.Chain())
}

// Handlers reports how many handlers each bus holds.
func (g *Grid[T]) Handlers() map[command.Kind]int {
	return map[command.Kind]int{
		command.KindCell:  g.cells.Len(),
		command.KindRow:   g.rows.Len(),
		command.KindSpace: g.spaces.Len(),
	}
}
