package command

import "fmt"

// PositionKind selects where an inserted row lands inside its segment.
type PositionKind string

const (
	PositionTop    PositionKind = "top"
	PositionBottom PositionKind = "bottom"
	PositionAfter  PositionKind = "after"
)

// Position is an insertion point: top, bottom, or directly below RowID.
type Position struct {
	Kind  PositionKind `json:"kind"`
	RowID string       `json:"row_id,omitempty"`
}

var (
	Top    = Position{Kind: PositionTop}
	Bottom = Position{Kind: PositionBottom}
)

// After returns the position directly below rowID.
func After(rowID string) Position {
	return Position{Kind: PositionAfter, RowID: rowID}
}

// ParsePosition accepts "top", "bottom" (the default) or "after" plus a row id.
func ParsePosition(kind, rowID string) (Position, error) {
	switch PositionKind(kind) {
	case PositionTop:
		return Top, nil
	case PositionBottom, "":
		return Bottom, nil
	case PositionAfter:
		if rowID == "" {
			return Position{}, fmt.Errorf("position after requires a row id")
		}
		return After(rowID), nil
	}
	return Position{}, fmt.Errorf("unknown position %q", kind)
}

func (p Position) String() string {
	if p.Kind == PositionAfter {
		return "after(" + p.RowID + ")"
	}
	return string(p.Kind)
}

// InsertPayload is carried by space/insert. RowID is allocated by the caller
// before dispatch so the result can be located afterwards.
type InsertPayload struct {
	RowID    string   `json:"row_id"`
	Data     any      `json:"data,omitempty"`
	Position Position `json:"position"`
}

// ErrorPayload is carried by the synthesized cell/error command.
type ErrorPayload struct {
	Cause   error   `json:"-"`
	Command Command `json:"command"`
}

// KeyPayload is the conventional payload of key_down / key_up.
type KeyPayload struct {
	Key string `json:"key"`
}

// EditPayload is the conventional payload of cell/edit.
type EditPayload struct {
	Value string `json:"value"`
}
