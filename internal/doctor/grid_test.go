package doctor

import (
	"testing"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/orderkey"
	"github.com/mattjoyce/gridlink/internal/store"
)

func populatedGrid(t *testing.T) *grid.Grid[string] {
	t.Helper()
	g, err := grid.New[string](grid.Options{})
	if err != nil {
		t.Fatal(err)
	}
	table := g.TableSegment()
	for _, data := range []string{"a", "b", "c"} {
		id, err := g.Insert(table, data, command.Bottom)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := g.PopulateRow(id, 3); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestCheckGrid_Healthy(t *testing.T) {
	t.Parallel()
	r := CheckGrid(populatedGrid(t).Snapshot())
	if !r.Valid {
		t.Fatalf("expected healthy grid, got %s", FormatHuman(r))
	}
	if r.Subject != "Grid" {
		t.Errorf("subject = %q", r.Subject)
	}
}

func TestCheckGrid_Empty(t *testing.T) {
	t.Parallel()
	if r := CheckGrid(store.Snapshot[string]{}); !r.Valid {
		t.Fatalf("empty snapshot should be valid: %v", r.Errors)
	}
}

func TestCheckGrid_Corruptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		corrupt  func(s *store.Snapshot[string])
		category string
	}{
		{
			name: "broken row chain",
			corrupt: func(s *store.Snapshot[string]) {
				s.Rows[1].Top = ""
			},
			category: "row_links",
		},
		{
			name: "one-sided cell link",
			corrupt: func(s *store.Snapshot[string]) {
				id := s.Rows[0].Cells[0]
				c := s.Cells[id]
				c.Bottom = ""
				s.Cells[id] = c
			},
			category: "cell_links",
		},
		{
			name: "dangling cell link",
			corrupt: func(s *store.Snapshot[string]) {
				id := s.Rows[0].Cells[0]
				c := s.Cells[id]
				c.Top = "ghost#0"
				s.Cells[id] = c
			},
			category: "cell_links",
		},
		{
			name: "orphan cell",
			corrupt: func(s *store.Snapshot[string]) {
				s.Cells["orphan#0"] = store.Cell{ID: "orphan#0", RowID: "nowhere"}
			},
			category: "cells",
		},
		{
			name: "key outside band",
			corrupt: func(s *store.Snapshot[string]) {
				s.Rows[0].Key = orderkey.Key{1, 5}
			},
			category: "keys",
		},
		{
			name: "row in wrong segment",
			corrupt: func(s *store.Snapshot[string]) {
				s.Rows[2].SpaceID = "elsewhere"
			},
			category: "membership",
		},
		{
			name: "broken segment chain",
			corrupt: func(s *store.Snapshot[string]) {
				s.Spaces = append(s.Spaces, store.Space{ID: "stray", Top: "wrong"})
			},
			category: "chain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := populatedGrid(t).Snapshot()
			tt.corrupt(&snap)

			r := CheckGrid(snap)
			if r.Valid {
				t.Fatal("expected corruption to be reported")
			}
			found := false
			for _, e := range r.Errors {
				if e.Category == tt.category {
					found = true
				}
			}
			if !found {
				t.Fatalf("no %s error in %v", tt.category, r.Errors)
			}
		})
	}
}
