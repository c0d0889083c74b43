// Package store holds the entity registries of a grid instance: keyed lookup
// tables for cells, rows and spaces. Stores carry no behaviour beyond CRUD;
// adjacency maintenance lives in the spatial and segment packages.
//
// A Stores value is created once per grid and handed to every component that
// needs it. Nothing in this package is global.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/mattjoyce/gridlink/internal/orderkey"
)

var (
	ErrExists   = errors.New("entity already registered")
	ErrNotFound = errors.New("entity not found")
)

// Coordinate names one of the four directional link fields of a cell.
type Coordinate string

const (
	Top    Coordinate = "top"
	Bottom Coordinate = "bottom"
	Left   Coordinate = "left"
	Right  Coordinate = "right"
)

// Opposite returns the reverse direction.
func (c Coordinate) Opposite() Coordinate {
	switch c {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	default:
		return Left
	}
}

// Cell is one grid cell. Link fields hold neighbouring cell ids or "".
type Cell struct {
	ID     string `json:"id"`
	RowID  string `json:"row_id"`
	Column int    `json:"column"`
	Top    string `json:"top,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
	Right  string `json:"right,omitempty"`
}

// Link returns the neighbour id in direction c.
func (c *Cell) Link(coord Coordinate) string {
	switch coord {
	case Top:
		return c.Top
	case Bottom:
		return c.Bottom
	case Left:
		return c.Left
	default:
		return c.Right
	}
}

// SetLink sets the neighbour id in direction c.
func (c *Cell) SetLink(coord Coordinate, id string) {
	switch coord {
	case Top:
		c.Top = id
	case Bottom:
		c.Bottom = id
	case Left:
		c.Left = id
	default:
		c.Right = id
	}
}

// Row is one grid row carrying application data of type T.
type Row[T any] struct {
	ID      string       `json:"id"`
	SpaceID string       `json:"space_id"`
	Cells   []string     `json:"cells"`
	Data    T            `json:"data"`
	Top     string       `json:"top,omitempty"`
	Bottom  string       `json:"bottom,omitempty"`
	Key     orderkey.Key `json:"-"`
}

// Clone returns a copy safe to hand to callers outside the engine.
func (r *Row[T]) Clone() Row[T] {
	out := *r
	out.Cells = slices.Clone(r.Cells)
	out.Key = r.Key.Clone()
	return out
}

// Space is one segment of the row chain.
type Space struct {
	ID     string         `json:"id"`
	Owner  string         `json:"owner"`
	RowIDs []string       `json:"row_ids"`
	Top    string         `json:"top,omitempty"`
	Bottom string         `json:"bottom,omitempty"`
	Range  orderkey.Range `json:"-"`
}

// Clone returns a copy safe to hand to callers outside the engine.
func (s *Space) Clone() Space {
	out := *s
	out.RowIDs = slices.Clone(s.RowIDs)
	return out
}

// Empty reports whether the space holds no rows.
func (s *Space) Empty() bool { return len(s.RowIDs) == 0 }

// Table is an arena-style map from opaque id to entity.
type Table[E any] struct {
	kind  string
	items map[string]*E
}

// NewTable creates an empty table. kind is used in error messages.
func NewTable[E any](kind string) *Table[E] {
	return &Table[E]{kind: kind, items: make(map[string]*E)}
}

// Add registers e under id, failing if the id is taken.
func (t *Table[E]) Add(id string, e *E) error {
	if id == "" {
		return fmt.Errorf("%s id is empty", t.kind)
	}
	if _, ok := t.items[id]; ok {
		return fmt.Errorf("%s %q: %w", t.kind, id, ErrExists)
	}
	t.items[id] = e
	return nil
}

// Get returns the entity registered under id.
func (t *Table[E]) Get(id string) (*E, bool) {
	e, ok := t.items[id]
	return e, ok
}

// Has reports whether id is registered.
func (t *Table[E]) Has(id string) bool {
	_, ok := t.items[id]
	return ok
}

// Delete removes id and reports whether it was present.
func (t *Table[E]) Delete(id string) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	return true
}

// Len returns the number of registered entities.
func (t *Table[E]) Len() int { return len(t.items) }

// IDs returns every registered id in sorted order.
func (t *Table[E]) IDs() []string {
	ids := make([]string, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stores bundles the three registries of one grid instance.
type Stores[T any] struct {
	Cells  *Table[Cell]
	Rows   *Table[Row[T]]
	Spaces *Table[Space]
}

// New creates empty registries.
func New[T any]() *Stores[T] {
	return &Stores[T]{
		Cells:  NewTable[Cell]("cell"),
		Rows:   NewTable[Row[T]]("row"),
		Spaces: NewTable[Space]("space"),
	}
}

// RowsTopDown returns every row ordered by descending key, i.e. in visual
// order from the top of the grid.
func (s *Stores[T]) RowsTopDown() []*Row[T] {
	rows := make([]*Row[T], 0, s.Rows.Len())
	for _, id := range s.Rows.IDs() {
		r, _ := s.Rows.Get(id)
		rows = append(rows, r)
	}
	slices.SortStableFunc(rows, func(a, b *Row[T]) int {
		return orderkey.Compare(b.Key, a.Key)
	})
	return rows
}

// Snapshot is a detached copy of a grid's entities for readers outside the
// engine. Spaces follow the segment chain top to bottom and Rows the global
// visual order.
type Snapshot[T any] struct {
	Spaces []Space         `json:"spaces"`
	Rows   []Row[T]        `json:"rows"`
	Cells  map[string]Cell `json:"cells"`
}

// Snapshot copies every entity. chain lists space ids top to bottom.
func (s *Stores[T]) Snapshot(chain []string) Snapshot[T] {
	out := Snapshot[T]{Cells: make(map[string]Cell, s.Cells.Len())}
	for _, id := range chain {
		if sp, ok := s.Spaces.Get(id); ok {
			out.Spaces = append(out.Spaces, sp.Clone())
		}
	}
	for _, r := range s.RowsTopDown() {
		out.Rows = append(out.Rows, r.Clone())
	}
	for _, id := range s.Cells.IDs() {
		c, _ := s.Cells.Get(id)
		out.Cells[id] = *c
	}
	return out
}

// Row returns the snapshot row with id.
func (s Snapshot[T]) Row(id string) (Row[T], bool) {
	for _, r := range s.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row[T]{}, false
}
