package plugin

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gridlink/internal/command"
)

const (
	SupportedManifestSpec    = "gridlink.plugin"
	SupportedManifestVersion = 1
)

// hostOrigin stands for commands issued by the host rather than a plugin.
const hostOrigin = "host"

// Rule is one interception rule of a declarative plugin.
type Rule struct {
	Kind     command.Kind   `yaml:"kind"`
	Commands []command.Name `yaml:"commands,omitempty"` // empty matches every name of Kind
	Verdict  string         `yaml:"verdict"`
	Origins  []string       `yaml:"origins,omitempty"` // "host" matches an empty origin
}

// Matches reports whether cmd falls under the rule.
func (r Rule) Matches(cmd command.Command) bool {
	if cmd.Kind != r.Kind {
		return false
	}
	if len(r.Commands) > 0 && !contains(r.Commands, cmd.Name) {
		return false
	}
	if len(r.Origins) > 0 {
		origin := cmd.Origin
		if origin == "" {
			origin = hostOrigin
		}
		if !contains(r.Origins, origin) {
			return false
		}
	}
	return true
}

func contains[E comparable](s []E, v E) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func parseVerdict(s string) (command.Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "":
		return command.Block, nil
	case "allow":
		return command.Allow, nil
	case "abstain":
		return command.Abstain, nil
	}
	return command.Abstain, fmt.Errorf("invalid verdict %q (valid: block, allow, abstain)", s)
}

// Rules is a list of rules.
//
// Accepted formats:
//   - shorthand string: rules: [cell/edit, row/destroy] (block)
//   - object: rules: [{kind: cell, commands: [edit], verdict: allow, origins: [host]}]
type Rules []Rule

func (r *Rules) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*r = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("rules must be a sequence")
	}

	out := make([]Rule, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			kind, name, ok := strings.Cut(strings.TrimSpace(item.Value), "/")
			if !ok {
				return fmt.Errorf("rule %q must be <kind>/<command>", item.Value)
			}
			rule := Rule{Kind: command.Kind(kind), Verdict: "block"}
			if name != "*" {
				rule.Commands = []command.Name{command.Name(name)}
			}
			out = append(out, rule)
		case yaml.MappingNode:
			var tmp Rule
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid rule object: %w", err)
			}
			out = append(out, tmp)
		default:
			return fmt.Errorf("invalid rule entry (must be string or object)")
		}
	}

	*r = out
	return nil
}

// Manifest defines the structure of a rule plugin's manifest.yaml file.
type Manifest struct {
	ManifestSpec    string   `yaml:"manifest_spec"`
	ManifestVersion int      `yaml:"manifest_version"`
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Description     string   `yaml:"description,omitempty"`
	Dependencies    []string `yaml:"dependencies,omitempty"`
	Rules           Rules    `yaml:"rules"`

	// Path is the directory the manifest was loaded from.
	Path string `yaml:"-"`
}

// Validate checks required fields and every rule.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.ManifestSpec) == "" {
		return fmt.Errorf("manifest_spec is required")
	}
	if m.ManifestSpec != SupportedManifestSpec {
		return fmt.Errorf("unsupported manifest_spec %q (supported: %q)", m.ManifestSpec, SupportedManifestSpec)
	}
	if m.ManifestVersion == 0 {
		return fmt.Errorf("manifest_version is required")
	}
	if m.ManifestVersion != SupportedManifestVersion {
		return fmt.Errorf("unsupported manifest_version %d (supported: %d)", m.ManifestVersion, SupportedManifestVersion)
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if contains(m.Dependencies, m.Name) {
		return fmt.Errorf("plugin %q depends on itself", m.Name)
	}
	if len(m.Rules) == 0 {
		return fmt.Errorf("at least one rule must be declared")
	}

	for i, rule := range m.Rules {
		if _, err := command.ParseKind(string(rule.Kind)); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		for _, name := range rule.Commands {
			if !command.Valid(rule.Kind, name) {
				return fmt.Errorf("rule %d: %q is not a %s command", i, name, rule.Kind)
			}
		}
		if _, err := parseVerdict(rule.Verdict); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// BlockedCommands returns "<kind>/<name>" for every explicitly blocked
// command, preserving manifest order.
func (m *Manifest) BlockedCommands() []string {
	var out []string
	for _, r := range m.Rules {
		if v, _ := parseVerdict(r.Verdict); v != command.Block {
			continue
		}
		if len(r.Commands) == 0 {
			out = append(out, string(r.Kind)+"/*")
			continue
		}
		for _, n := range r.Commands {
			out = append(out, string(r.Kind)+"/"+string(n))
		}
	}
	return out
}
