// Package inspect renders terminal and JSON reports about a grid: the
// segment overview, the history of a single row and a content fingerprint.
package inspect

import (
	"cmp"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/store"
)

// ErrRowNotFound means the row is neither live nor journaled.
var ErrRowNotFound = errors.New("not found")

// History is the read side of the command journal.
type History interface {
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// Report is the structured JSON representation of a row report.
type Report struct {
	RowID   string          `json:"row_id"`
	Status  string          `json:"status"` // live, gone or offline
	Segment string          `json:"segment,omitempty"`
	Owner   string          `json:"owner,omitempty"`
	Key     string          `json:"key,omitempty"`
	Top     string          `json:"top,omitempty"`
	Bottom  string          `json:"bottom,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Cells   []store.Cell    `json:"cells"`
	History []journal.Entry `json:"history"`
}

// BuildReport renders a terminal-friendly report for one row.
func BuildReport[T any](ctx context.Context, snap store.Snapshot[T], h History, rowID string) (string, error) {
	report, err := gatherReportData(ctx, snap, h, rowID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Row Report\n")
	fmt.Fprintf(&out, "Row ID      : %s\n", report.RowID)
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	if report.Status == "live" {
		fmt.Fprintf(&out, "Segment     : %s (%s)\n", report.Segment, report.Owner)
		fmt.Fprintf(&out, "Key         : %s\n", report.Key)
		fmt.Fprintf(&out, "Above       : %s\n", renderUnset(report.Top, "<none>"))
		fmt.Fprintf(&out, "Below       : %s\n", renderUnset(report.Bottom, "<none>"))
		fmt.Fprintf(&out, "Data        : %s\n", prettyJSON(report.Data))
		fmt.Fprintf(&out, "\n")

		for _, c := range report.Cells {
			fmt.Fprintf(&out, "[%d] %s\n", c.Column, c.ID)
			fmt.Fprintf(&out, "    top    : %s\n", renderUnset(c.Top, "<none>"))
			fmt.Fprintf(&out, "    bottom : %s\n", renderUnset(c.Bottom, "<none>"))
			fmt.Fprintf(&out, "    left   : %s\n", renderUnset(c.Left, "<none>"))
			fmt.Fprintf(&out, "    right  : %s\n", renderUnset(c.Right, "<none>"))
		}
	}

	if len(report.History) > 0 {
		fmt.Fprintf(&out, "\nHistory\n")
		for _, e := range report.History {
			fmt.Fprintf(&out, "  #%-5d %s %s/%s -> %s (%s) by %s\n",
				e.Seq, e.DispatchedAt.Format("15:04:05.000"), e.Kind, e.Name, e.Target,
				e.Outcome, renderUnset(e.Origin, "host"))
		}
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON row report.
func BuildJSONReport[T any](ctx context.Context, snap store.Snapshot[T], h History, rowID string) (string, error) {
	report, err := gatherReportData(ctx, snap, h, rowID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData[T any](ctx context.Context, snap store.Snapshot[T], h History, rowID string) (*Report, error) {
	if strings.TrimSpace(rowID) == "" {
		return nil, fmt.Errorf("row_id is required")
	}

	report := &Report{RowID: rowID, Status: "gone", Cells: make([]store.Cell, 0)}
	targets := []string{rowID}

	// A live grid always has its table segment; no segments means the
	// report comes from the journal alone.
	if len(snap.Spaces) == 0 {
		report.Status = "offline"
	}

	if row, ok := snap.Row(rowID); ok {
		report.Status = "live"
		report.Segment = row.SpaceID
		report.Key = row.Key.String()
		report.Top = row.Top
		report.Bottom = row.Bottom
		if data, err := json.Marshal(row.Data); err == nil {
			report.Data = data
		}
		for _, sp := range snap.Spaces {
			if sp.ID == row.SpaceID {
				report.Owner = sp.Owner
			}
		}
		for _, id := range row.Cells {
			if c, ok := snap.Cells[id]; ok {
				report.Cells = append(report.Cells, c)
			}
		}
		targets = append(targets, row.Cells...)
	}

	history, err := lookupHistory(ctx, h, targets)
	if err != nil {
		return nil, err
	}
	if report.Status != "live" && len(history) == 0 {
		return nil, fmt.Errorf("row %q %w", rowID, ErrRowNotFound)
	}
	report.History = history
	return report, nil
}

func lookupHistory(ctx context.Context, h History, targets []string) ([]journal.Entry, error) {
	out := make([]journal.Entry, 0)
	if h == nil {
		return out, nil
	}
	for _, target := range targets {
		entries, err := h.List(ctx, journal.Filter{Target: target})
		if err != nil {
			return nil, fmt.Errorf("load history of %q: %w", target, err)
		}
		out = append(out, entries...)
	}
	slices.SortFunc(out, func(a, b journal.Entry) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

// Overview renders every segment top to bottom with its rows.
func Overview[T any](snap store.Snapshot[T]) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Grid Overview (%d segment(s), %d row(s), %d cell(s))\n",
		len(snap.Spaces), len(snap.Rows), len(snap.Cells))
	for _, sp := range snap.Spaces {
		fmt.Fprintf(&out, "\n%s  owner=%s  band=%s  rows=%d\n", sp.ID, sp.Owner, sp.Range.Lo, len(sp.RowIDs))
		for _, id := range sp.RowIDs {
			row, ok := snap.Row(id)
			if !ok {
				fmt.Fprintf(&out, "  %s  <missing>\n", id)
				continue
			}
			fmt.Fprintf(&out, "  %-14s %s  cells=%d\n", row.Key, row.ID, len(row.Cells))
		}
	}
	return out.String()
}

// fingerprintRow carries the key, which Row hides from JSON.
type fingerprintRow[T any] struct {
	store.Row[T]
	Key string `json:"key"`
}

// Fingerprint returns the BLAKE3 hash of the snapshot's canonical JSON.
// Equal structure and data give equal fingerprints.
func Fingerprint[T any](snap store.Snapshot[T]) (string, error) {
	rows := make([]fingerprintRow[T], len(snap.Rows))
	for i, r := range snap.Rows {
		rows[i] = fingerprintRow[T]{Row: r, Key: r.Key.String()}
	}
	data, err := json.Marshal(struct {
		Spaces []store.Space         `json:"spaces"`
		Rows   []fingerprintRow[T]   `json:"rows"`
		Cells  map[string]store.Cell `json:"cells"`
	}{snap.Spaces, rows, snap.Cells})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
