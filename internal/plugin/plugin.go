// Package plugin defines the interception plugins that sit in front of the
// command buses, the dependency resolver that orders them, and the manager
// that owns their lifecycle.
//
// Plugins are trusted code supplied by the host. Each one declares the names
// of the plugins it depends on; the resolved order drives initialization
// (ascending), destruction (descending) and the order in which the buses run
// interceptors. Declarative rule plugins can also be loaded from
// manifest.yaml files (see Discover).
package plugin

import (
	"fmt"

	"github.com/mattjoyce/gridlink/internal/command"
)

//go:generate mockgen -destination=mocks/mock_plugin.go -package=mocks github.com/mattjoyce/gridlink/internal/plugin Capability,Plugin

// Plugin intercepts every command kind. Returning command.Block from an
// interceptor stops the dispatch; an error is logged and ignored.
type Plugin interface {
	Name() string
	Version() string
	Dependencies() []string
	InterceptCell(cmd command.Command) (command.Verdict, error)
	InterceptRow(cmd command.Command) (command.Verdict, error)
	InterceptSpace(cmd command.Command) (command.Verdict, error)
}

// Initializer is implemented by plugins that need their capability object.
type Initializer interface {
	Init(c Capability) error
}

// Destroyer is implemented by plugins that release resources on shutdown.
type Destroyer interface {
	Destroy() error
}

// Capability is the handle a plugin uses to act on the grid. Every command
// it issues carries the plugin's name as origin.
type Capability interface {
	Name() string
	// Segment is the id of the space this plugin exclusively inserts into.
	Segment() string

	NewCellCommand(name command.Name, targetID string, payload any) (command.Command, error)
	NewRowCommand(name command.Name, targetID string, payload any) (command.Command, error)
	NewSpaceCommand(name command.Name, targetID string, payload any) (command.Command, error)
	Dispatch(cmd command.Command) command.Outcome

	InsertRow(data any, pos command.Position) (string, error)
	DeleteRow(rowID string) error

	CompareVertical(a, b string) (int, error)
	CompareHorizontal(a, b string) (int, error)

	SegmentAbove(spaceID string) (string, bool)
	SegmentBelow(spaceID string) (string, bool)
}

// Intercept routes cmd to the interceptor matching its kind.
func Intercept(p Plugin, cmd command.Command) (command.Verdict, error) {
	switch cmd.Kind {
	case command.KindCell:
		return p.InterceptCell(cmd)
	case command.KindRow:
		return p.InterceptRow(cmd)
	case command.KindSpace:
		return p.InterceptSpace(cmd)
	}
	return command.Abstain, fmt.Errorf("unknown command kind %q", cmd.Kind)
}

// Base abstains from every command. Embed it and override what you need.
type Base struct {
	PluginName    string
	PluginVersion string
	Requires      []string
}

func (b Base) Name() string           { return b.PluginName }
func (b Base) Version() string        { return b.PluginVersion }
func (b Base) Dependencies() []string { return b.Requires }

func (Base) InterceptCell(command.Command) (command.Verdict, error)  { return command.Abstain, nil }
func (Base) InterceptRow(command.Command) (command.Verdict, error)   { return command.Abstain, nil }
func (Base) InterceptSpace(command.Command) (command.Verdict, error) { return command.Abstain, nil }
