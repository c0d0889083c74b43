// Package command defines the tagged values that flow through the command
// buses: entity kinds, the enumerated command names per kind, interceptor
// verdicts and the typed payloads some commands carry.
package command

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the entity family a command addresses.
type Kind string

const (
	KindCell  Kind = "cell"
	KindRow   Kind = "row"
	KindSpace Kind = "space"
)

// Kinds lists every kind in bus construction order.
var Kinds = []Kind{KindCell, KindRow, KindSpace}

// Name is a command name. Valid names are fixed per Kind.
type Name string

// Cell command names. Input names are raw, pre-classified device events.
const (
	Click       Name = "click"
	DoubleClick Name = "double_click"
	ContextMenu Name = "context_menu"
	MouseDown   Name = "mouse_down"
	MouseUp     Name = "mouse_up"
	MouseEnter  Name = "mouse_enter"
	MouseLeave  Name = "mouse_leave"
	KeyDown     Name = "key_down"
	KeyUp       Name = "key_up"
	Edit        Name = "edit"
	Focus       Name = "focus"
	Blur        Name = "blur"
	// Error is synthesized by the cell bus after a handler failure.
	Error Name = "error"
)

// Row command names.
const (
	Update     Name = "update"
	Destroy    Name = "destroy"
	CellsReady Name = "cells_ready"
	Select     Name = "select"
)

// Space command names.
const (
	Insert Name = "insert"
	Clear  Name = "clear"
)

var names = map[Kind]map[Name]struct{}{
	KindCell: set(Click, DoubleClick, ContextMenu, MouseDown, MouseUp, MouseEnter,
		MouseLeave, KeyDown, KeyUp, Edit, Focus, Blur, Error),
	KindRow:   set(Update, Destroy, CellsReady, Select),
	KindSpace: set(Insert, Clear),
}

func set(ns ...Name) map[Name]struct{} {
	m := make(map[Name]struct{}, len(ns))
	for _, n := range ns {
		m[n] = struct{}{}
	}
	return m
}

// Valid reports whether name belongs to kind's enumerated set.
func Valid(kind Kind, name Name) bool {
	_, ok := names[kind][name]
	return ok
}

// ParseKind maps a string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCell, KindRow, KindSpace:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown command kind %q", s)
}

// ParseRef parses the "kind/name" form, e.g. "row/update".
func ParseRef(s string) (Kind, Name, error) {
	k, n, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return "", "", fmt.Errorf("command %q: want kind/name", s)
	}
	kind, err := ParseKind(k)
	if err != nil {
		return "", "", err
	}
	if !Valid(kind, Name(n)) {
		return "", "", fmt.Errorf("command %q: unknown %s command %q", s, kind, n)
	}
	return kind, Name(n), nil
}

// Command is an immutable mutation or notification request. It is passed by
// value; the bus never modifies the caller's copy.
type Command struct {
	Kind      Kind      `json:"kind"`
	Name      Name      `json:"name"`
	Payload   any       `json:"payload,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a command of the given kind, validating the name.
func New(kind Kind, name Name, targetID string, payload any) (Command, error) {
	if !Valid(kind, name) {
		return Command{}, fmt.Errorf("command %q is not a %s command", name, kind)
	}
	return Command{Kind: kind, Name: name, TargetID: targetID, Payload: payload}, nil
}

// WithOrigin returns a copy stamped with the issuing plugin's name.
func (c Command) WithOrigin(origin string) Command {
	c.Origin = origin
	return c
}

// String is used in log lines.
func (c Command) String() string {
	if c.TargetID == "" {
		return fmt.Sprintf("%s/%s", c.Kind, c.Name)
	}
	return fmt.Sprintf("%s/%s -> %s", c.Kind, c.Name, c.TargetID)
}

// Verdict is an interceptor's decision about a command.
type Verdict int

const (
	// Abstain expresses no opinion. It is the zero value.
	Abstain Verdict = iota
	// Allow lets the command continue and is recorded at debug level.
	Allow
	// Block stops the dispatch: no further interceptors, no delivery.
	Block
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "abstain"
	}
}
