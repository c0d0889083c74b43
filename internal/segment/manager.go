// Package segment owns the linear chain of spaces (segments) that partitions
// a grid's rows, and the protocol for inserting rows into it.
//
// Every segment is given a band of order keys when it is created, top band
// first, so sorting all rows by key yields the same order as walking the
// chain top to bottom. Within a segment RowIDs is kept in visual order.
package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/spatial"
	"github.com/mattjoyce/gridlink/internal/store"
)

var (
	ErrDuplicateOwner = errors.New("segment owner already has a segment")
	ErrNotInSegment   = errors.New("row is not in the target segment")
	ErrNotEmpty       = errors.New("segment still holds rows")
)

// Manager maintains the segment chain over one grid's stores.
type Manager[T any] struct {
	st     *store.Stores[T]
	coord  *spatial.Coordinator[T]
	step   uint32
	newID  func() string
	logger *slog.Logger

	top, bottom string
	band        uint32
	exhausted   bool
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	step   uint32
	newID  func() string
	logger *slog.Logger
}

// WithStep sets the preferred key distance between sibling rows.
func WithStep(step uint32) Option {
	return func(o *options) { o.step = step }
}

// WithIDs replaces uuid generation for segment and row ids.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a manager with an empty chain.
func New[T any](st *store.Stores[T], coord *spatial.Coordinator[T], opts ...Option) *Manager[T] {
	o := options{step: orderkey.DefaultStep, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.WithComponent("segment")
	}
	return &Manager[T]{
		st:     st,
		coord:  coord,
		step:   o.step,
		newID:  o.newID,
		logger: o.logger,
		band:   orderkey.TopBand,
	}
}

// CreateSegment appends a new bottommost segment owned by owner.
func (m *Manager[T]) CreateSegment(owner string) (string, error) {
	if _, ok := m.ByOwner(owner); ok {
		return "", fmt.Errorf("%q: %w", owner, ErrDuplicateOwner)
	}
	if m.exhausted {
		return "", fmt.Errorf("create segment %q: %w", owner, orderkey.ErrExhausted)
	}

	sp := &store.Space{
		ID:    m.newID(),
		Owner: owner,
		Range: orderkey.BandRange(m.band, m.step),
	}
	if err := m.st.Spaces.Add(sp.ID, sp); err != nil {
		return "", fmt.Errorf("create segment %q: %w", owner, err)
	}
	if next, err := orderkey.NextBand(m.band); err != nil {
		m.exhausted = true
	} else {
		m.band = next
	}

	if prev, ok := m.st.Spaces.Get(m.bottom); ok {
		prev.Bottom = sp.ID
		sp.Top = prev.ID
	} else {
		m.top = sp.ID
	}
	m.bottom = sp.ID

	m.logger.Info("segment created", "segment", sp.ID, "owner", owner, "band", sp.Range.Lo.String())
	return sp.ID, nil
}

// DropSegment unlinks an empty segment from the chain and forgets it. Its
// key band is not handed out again.
func (m *Manager[T]) DropSegment(spaceID string) error {
	sp, ok := m.st.Spaces.Get(spaceID)
	if !ok {
		return fmt.Errorf("segment %q: %w", spaceID, store.ErrNotFound)
	}
	if !sp.Empty() {
		return fmt.Errorf("drop segment %q: %w", spaceID, ErrNotEmpty)
	}

	if above, ok := m.st.Spaces.Get(sp.Top); ok {
		above.Bottom = sp.Bottom
	} else {
		m.top = sp.Bottom
	}
	if below, ok := m.st.Spaces.Get(sp.Bottom); ok {
		below.Top = sp.Top
	} else {
		m.bottom = sp.Top
	}
	m.st.Spaces.Delete(spaceID)

	m.logger.Info("segment dropped", "segment", spaceID, "owner", sp.Owner)
	return nil
}

// Insert allocates a row in spaceID at pos and links it to its visual
// neighbours at row level. An empty rowID gets a fresh one. Cell-level
// linking waits for LinkCells.
func (m *Manager[T]) Insert(spaceID, rowID string, data T, pos command.Position) (*store.Row[T], error) {
	sp, ok := m.st.Spaces.Get(spaceID)
	if !ok {
		return nil, fmt.Errorf("segment %q: %w", spaceID, store.ErrNotFound)
	}
	if rowID == "" {
		rowID = m.newID()
	}

	key, at, err := m.placement(sp, pos)
	if err != nil {
		m.logger.Warn("insert skipped", "segment", spaceID, "position", pos.String(), "error", err)
		return nil, err
	}

	row := &store.Row[T]{ID: rowID, SpaceID: spaceID, Data: data, Key: key}
	if err := m.st.Rows.Add(rowID, row); err != nil {
		return nil, fmt.Errorf("insert row: %w", err)
	}
	sp.RowIDs = slices.Insert(sp.RowIDs, at, rowID)

	above, below := m.visualNeighbours(row)
	if above != "" {
		m.coord.LinkRows(above, rowID)
	}
	if below != "" {
		m.coord.LinkRows(rowID, below)
	}

	m.logger.Debug("row inserted", "row", rowID, "segment", spaceID, "key", key.String(), "above", above, "below", below)
	return row, nil
}

// placement returns the key for a new row and its index in sp.RowIDs.
func (m *Manager[T]) placement(sp *store.Space, pos command.Position) (orderkey.Key, int, error) {
	if pos.Kind == command.PositionAfter {
		idx := slices.Index(sp.RowIDs, pos.RowID)
		if idx < 0 {
			if m.st.Rows.Has(pos.RowID) {
				return nil, 0, fmt.Errorf("after %q: %w", pos.RowID, ErrNotInSegment)
			}
			return nil, 0, fmt.Errorf("after row %q: %w", pos.RowID, store.ErrNotFound)
		}
		anchor := m.mustRow(sp.RowIDs[idx])
		if idx+1 < len(sp.RowIDs) {
			next := m.mustRow(sp.RowIDs[idx+1])
			key, err := orderkey.Between(next.Key, anchor.Key)
			return key, idx + 1, err
		}
		key, err := sp.Range.Below(anchor.Key)
		return key, idx + 1, err
	}

	if sp.Empty() {
		key, err := sp.Range.Initial()
		return key, 0, err
	}
	switch pos.Kind {
	case command.PositionTop:
		key, err := sp.Range.Above(m.mustRow(sp.RowIDs[0]).Key)
		return key, 0, err
	case command.PositionBottom, "":
		key, err := sp.Range.Below(m.mustRow(sp.RowIDs[len(sp.RowIDs)-1]).Key)
		return key, len(sp.RowIDs), err
	}
	return nil, 0, fmt.Errorf("unknown position %q", pos.Kind)
}

// visualNeighbours finds the rows directly above and below row across all
// segments by scanning the global key order.
func (m *Manager[T]) visualNeighbours(row *store.Row[T]) (above, below string) {
	rows := m.st.RowsTopDown()
	i := slices.IndexFunc(rows, func(r *store.Row[T]) bool { return r.ID == row.ID })
	if i > 0 {
		above = rows[i-1].ID
	}
	if i >= 0 && i+1 < len(rows) {
		below = rows[i+1].ID
	}
	return above, below
}

// CellLinks reports what LinkCells connected a row to.
type CellLinks struct {
	Above       string // row whose cells now sit above, "" if none
	Below       string
	LinkedAbove bool
	LinkedBelow bool
}

// LinkCells connects a populated row's cells to its neighbours: on each side
// the in-segment neighbour when there is one, otherwise the boundary row of
// the nearest non-empty segment in that direction. Empty segments are
// skipped; a side with nothing to find stays unlinked. The row's own cells
// are chained left to right.
func (m *Manager[T]) LinkCells(rowID string) (CellLinks, error) {
	var res CellLinks
	row, ok := m.st.Rows.Get(rowID)
	if !ok {
		return res, fmt.Errorf("row %q: %w", rowID, store.ErrNotFound)
	}
	sp, ok := m.st.Spaces.Get(row.SpaceID)
	if !ok {
		return res, fmt.Errorf("segment %q: %w", row.SpaceID, store.ErrNotFound)
	}
	idx := slices.Index(sp.RowIDs, rowID)
	if idx < 0 {
		return res, fmt.Errorf("row %q: %w", rowID, ErrNotInSegment)
	}

	if idx > 0 {
		res.Above = sp.RowIDs[idx-1]
	} else if above, ok := m.NearestPopulatedAbove(sp.ID); ok {
		ids := m.mustSpace(above).RowIDs
		res.Above = ids[len(ids)-1]
	}
	if idx+1 < len(sp.RowIDs) {
		res.Below = sp.RowIDs[idx+1]
	} else if below, ok := m.NearestPopulatedBelow(sp.ID); ok {
		res.Below = m.mustSpace(below).RowIDs[0]
	}

	m.coord.LinkRowCellsHorizontal(rowID)
	if res.Above != "" {
		res.LinkedAbove = m.coord.LinkRowsCells(m.mustRow(res.Above).Cells, row.Cells)
	}
	if res.Below != "" {
		res.LinkedBelow = m.coord.LinkRowsCells(row.Cells, m.mustRow(res.Below).Cells)
	}
	m.logger.Debug("cells linked", "row", rowID, "above", res.Above, "below", res.Below)
	return res, nil
}

// Remove drops rowID from its segment's row list. Stores and links are
// left to the caller.
func (m *Manager[T]) Remove(rowID string) error {
	row, ok := m.st.Rows.Get(rowID)
	if !ok {
		return fmt.Errorf("row %q: %w", rowID, store.ErrNotFound)
	}
	sp, ok := m.st.Spaces.Get(row.SpaceID)
	if !ok {
		return fmt.Errorf("segment %q: %w", row.SpaceID, store.ErrNotFound)
	}
	idx := slices.Index(sp.RowIDs, rowID)
	if idx < 0 {
		return fmt.Errorf("row %q: %w", rowID, ErrNotInSegment)
	}
	sp.RowIDs = slices.Delete(sp.RowIDs, idx, idx+1)
	return nil
}

// Above returns the segment directly above spaceID.
func (m *Manager[T]) Above(spaceID string) (string, bool) {
	sp, ok := m.st.Spaces.Get(spaceID)
	if !ok || sp.Top == "" {
		return "", false
	}
	return sp.Top, true
}

// Below returns the segment directly below spaceID.
func (m *Manager[T]) Below(spaceID string) (string, bool) {
	sp, ok := m.st.Spaces.Get(spaceID)
	if !ok || sp.Bottom == "" {
		return "", false
	}
	return sp.Bottom, true
}

// NearestPopulatedAbove walks up from spaceID, skipping empty segments.
func (m *Manager[T]) NearestPopulatedAbove(spaceID string) (string, bool) {
	for id, ok := m.Above(spaceID); ok; id, ok = m.Above(id) {
		if !m.mustSpace(id).Empty() {
			return id, true
		}
	}
	return "", false
}

// NearestPopulatedBelow walks down from spaceID, skipping empty segments.
func (m *Manager[T]) NearestPopulatedBelow(spaceID string) (string, bool) {
	for id, ok := m.Below(spaceID); ok; id, ok = m.Below(id) {
		if !m.mustSpace(id).Empty() {
			return id, true
		}
	}
	return "", false
}

// Chain returns segment ids from top to bottom.
func (m *Manager[T]) Chain() []string {
	var out []string
	for id := m.top; id != ""; {
		out = append(out, id)
		sp, ok := m.st.Spaces.Get(id)
		if !ok {
			break
		}
		id = sp.Bottom
	}
	return out
}

// ByOwner returns the segment created for owner.
func (m *Manager[T]) ByOwner(owner string) (string, bool) {
	for _, id := range m.Chain() {
		if m.mustSpace(id).Owner == owner {
			return id, true
		}
	}
	return "", false
}

func (m *Manager[T]) mustRow(id string) *store.Row[T] {
	r, ok := m.st.Rows.Get(id)
	if !ok {
		panic(fmt.Sprintf("segment: row %q listed but not registered", id))
	}
	return r
}

func (m *Manager[T]) mustSpace(id string) *store.Space {
	sp, ok := m.st.Spaces.Get(id)
	if !ok {
		panic(fmt.Sprintf("segment: space %q linked but not registered", id))
	}
	return sp
}
