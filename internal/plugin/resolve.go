package plugin

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrDuplicatePlugin    = errors.New("duplicate plugin name")
	ErrMissingDependency  = errors.New("missing plugin dependency")
	ErrCircularDependency = errors.New("circular plugin dependency")
)

// DependencyError is a configuration error found while ordering plugins.
// It matches the sentinel in Err with errors.Is.
type DependencyError struct {
	Plugin     string
	Dependency string   // set for ErrMissingDependency
	Cycle      []string // set for ErrCircularDependency, first == last
	Err        error
}

func (e *DependencyError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingDependency):
		return fmt.Sprintf("plugin %q depends on %q: %v", e.Plugin, e.Dependency, e.Err)
	case errors.Is(e.Err, ErrCircularDependency):
		return fmt.Sprintf("plugin %q: %v: %s", e.Plugin, e.Err, strings.Join(e.Cycle, " -> "))
	default:
		return fmt.Sprintf("plugin %q: %v", e.Plugin, e.Err)
	}
}

func (e *DependencyError) Unwrap() error { return e.Err }

const (
	unvisited = iota
	visiting
	visited
)

// Resolve orders plugins so that each appears after all of its dependencies.
// Plugins are visited in input order, which makes the result deterministic.
func Resolve(plugins []Plugin) ([]Plugin, error) {
	index := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		name := p.Name()
		if name == "" {
			return nil, fmt.Errorf("plugin name is empty")
		}
		if _, dup := index[name]; dup {
			return nil, &DependencyError{Plugin: name, Err: ErrDuplicatePlugin}
		}
		index[name] = p
	}

	state := make(map[string]int, len(plugins))
	order := make([]Plugin, 0, len(plugins))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(path, name)
			cycle := append(slices.Clone(path[start:]), name)
			return &DependencyError{Plugin: name, Cycle: cycle, Err: ErrCircularDependency}
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range index[name].Dependencies() {
			if _, ok := index[dep]; !ok {
				return &DependencyError{Plugin: name, Dependency: dep, Err: ErrMissingDependency}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = visited
		order = append(order, index[name])
		return nil
	}

	for _, p := range plugins {
		if err := visit(p.Name()); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Names returns the plugin names in slice order.
func Names(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Name()
	}
	return out
}
