// Package bus delivers commands of one kind to per-target handlers after
// running them through the plugin interception chain.
//
// A dispatch runs to completion synchronously: timestamping, name check,
// interceptors in resolved dependency order, the owner's structural hooks,
// then the handler. Nothing here is retried and no error reaches the caller;
// the returned Outcome says what happened.
package bus

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/plugin"
)

// Handler receives a command addressed to its target.
type Handler func(cmd command.Command) error

// Chain supplies the interception order. The bus takes a fresh snapshot on
// every dispatch, so plugins added or removed mid-dispatch apply to the next one.
type Chain interface {
	Order() []plugin.Plugin
}

// Hooks let the bus owner apply structural effects around delivery.
// Before runs after the chain accepted the command; an error rejects it
// without delivery. After runs whenever Before succeeded.
type Hooks struct {
	Before func(cmd command.Command) error
	After  func(cmd command.Command)
}

// Recorder receives dispatch telemetry.
type Recorder interface {
	Outcome(kind command.Kind, name command.Name, outcome command.Outcome)
	Verdict(kind command.Kind, plugin string, verdict command.Verdict)
	InterceptorError(kind command.Kind, plugin string)
}

// Observer sees every dispatched command together with its outcome.
type Observer func(cmd command.Command, outcome command.Outcome)

type noopRecorder struct{}

func (noopRecorder) Outcome(command.Kind, command.Name, command.Outcome) {}
func (noopRecorder) Verdict(command.Kind, string, command.Verdict)      {}
func (noopRecorder) InterceptorError(command.Kind, string)              {}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger overrides the kind-scoped default logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithClock replaces time.Now for timestamping.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// WithRecorder installs a telemetry recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) { b.rec = r }
}

// WithHooks installs the owner's structural hooks.
func WithHooks(h Hooks) Option {
	return func(b *Bus) { b.hooks = h }
}

// WithObserver appends an observer.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observers = append(b.observers, o) }
}

// Bus is the command bus for one entity kind. It is not safe for concurrent
// use; reentrant dispatch from handlers and interceptors is allowed.
type Bus struct {
	kind      command.Kind
	chain     Chain
	handlers  map[string]Handler
	hooks     Hooks
	observers []Observer
	rec       Recorder
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a bus for kind. A nil chain means no interceptors.
func New(kind command.Kind, chain Chain, opts ...Option) *Bus {
	b := &Bus{
		kind:     kind,
		chain:    chain,
		handlers: make(map[string]Handler),
		rec:      noopRecorder{},
		now:      time.Now,
		logger:   log.WithKind(string(kind)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind returns the entity kind this bus serves.
func (b *Bus) Kind() command.Kind { return b.kind }

// Register associates handler with targetID, replacing any previous one.
func (b *Bus) Register(targetID string, handler Handler) {
	if handler == nil {
		b.Unregister(targetID)
		return
	}
	b.handlers[targetID] = handler
}

// Unregister removes the handler for targetID. Unknown ids are ignored.
func (b *Bus) Unregister(targetID string) {
	delete(b.handlers, targetID)
}

// Has reports whether a handler is registered for targetID.
func (b *Bus) Has(targetID string) bool {
	_, ok := b.handlers[targetID]
	return ok
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int { return len(b.handlers) }

// Dispatch runs cmd through the chain and delivers it.
func (b *Bus) Dispatch(cmd command.Command) command.Outcome {
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = b.now()
	}
	if cmd.Kind == "" {
		cmd.Kind = b.kind
	}

	outcome := b.dispatch(cmd)

	b.rec.Outcome(b.kind, cmd.Name, outcome)
	for _, o := range b.observers {
		o(cmd, outcome)
	}
	return outcome
}

func (b *Bus) dispatch(cmd command.Command) command.Outcome {
	if cmd.Kind != b.kind || !command.Valid(b.kind, cmd.Name) {
		b.logger.Warn("invalid command for bus", "command", cmd.String())
		return command.Invalid
	}

	if chain := b.chain; chain != nil {
		for _, p := range chain.Order() {
			name := p.Name()
			if name == cmd.Origin {
				continue
			}
			verdict, err := b.intercept(p, cmd)
			if err != nil {
				b.rec.InterceptorError(b.kind, name)
				b.logger.Error("interceptor failed", "plugin", name, "command", cmd.String(), "error", err)
				continue
			}
			switch verdict {
			case command.Block:
				b.rec.Verdict(b.kind, name, verdict)
				b.logger.Info("command blocked", "plugin", name, "command", cmd.String(), "origin", cmd.Origin)
				return command.Blocked
			case command.Allow:
				b.rec.Verdict(b.kind, name, verdict)
				b.logger.Debug("command allowed", "plugin", name, "command", cmd.String())
			}
		}
	}

	if b.hooks.Before != nil {
		if err := b.hooks.Before(cmd); err != nil {
			b.logger.Warn("command rejected", "command", cmd.String(), "error", err)
			return command.Rejected
		}
	}

	outcome := b.deliver(cmd)

	if b.hooks.After != nil {
		b.hooks.After(cmd)
	}
	return outcome
}

func (b *Bus) deliver(cmd command.Command) command.Outcome {
	h, ok := b.handlers[cmd.TargetID]
	if !ok {
		b.logger.Debug("no handler registered", "command", cmd.String())
		return command.Unhandled
	}

	err := call(h, cmd)
	if err == nil {
		return command.Delivered
	}
	b.logger.Error("handler failed", "command", cmd.String(), "error", err)

	if b.kind == command.KindCell {
		synthetic := command.Command{
			Kind:      command.KindCell,
			Name:      command.Error,
			TargetID:  cmd.TargetID,
			Payload:   command.ErrorPayload{Cause: err, Command: cmd},
			Timestamp: b.now(),
		}
		if err := call(h, synthetic); err != nil {
			b.logger.Error("error command failed", "command", cmd.String(), "error", err)
		}
	}
	return command.Failed
}

func (b *Bus) intercept(p plugin.Plugin, cmd command.Command) (v command.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interceptor panic: %v", r)
			b.logger.Debug("interceptor panic stack", "plugin", p.Name(), "stack", string(debug.Stack()))
		}
	}()
	return plugin.Intercept(p, cmd)
}

func call(h Handler, cmd command.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(cmd)
}
