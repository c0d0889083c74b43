package api

import (
	"encoding/json"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/store"
)

// GridResponse is returned by GET /grid.
type GridResponse struct {
	Spaces []SpaceView           `json:"spaces"`
	Rows   []RowView             `json:"rows"`
	Cells  map[string]store.Cell `json:"cells"`
}

// SpaceView is a segment with its key band spelled out.
type SpaceView struct {
	store.Space
	BandLo string `json:"band_lo"`
	BandHi string `json:"band_hi"`
}

// RowView is a row with its order key spelled out.
type RowView struct {
	store.Row[json.RawMessage]
	Key string `json:"key"`
}

// FingerprintResponse is returned by GET /grid/fingerprint.
type FingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
	Rows        int    `json:"rows"`
}

// InsertRequest is the JSON body for POST /segments/{spaceID}/rows.
type InsertRequest struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Position string          `json:"position,omitempty"` // top, bottom or after
	After    string          `json:"after,omitempty"`
	Cells    *int            `json:"cells,omitempty"`
}

// InsertResponse is returned on a successful insert.
type InsertResponse struct {
	RowID string   `json:"row_id"`
	Cells []string `json:"cells"`
}

// UpdateRequest is the JSON body for PUT /rows/{rowID}.
type UpdateRequest struct {
	Data json.RawMessage `json:"data"`
}

// CommandRequest is the JSON body for POST /commands.
type CommandRequest struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandResponse reports what the bus did with a dispatched command.
type CommandResponse struct {
	Outcome command.Outcome `json:"outcome"`
}

// JournalResponse is returned by GET /journal.
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

// StatusResponse acknowledges a structural change.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Segments      int    `json:"segments"`
	Rows          int    `json:"rows"`
	PluginsLoaded int    `json:"plugins_loaded"`
	Subscribers   int    `json:"event_subscribers"`
	EventsDropped int64  `json:"events_dropped"`
}
