package plugin

import (
	"log/slog"
	"slices"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/log"
)

// RulePlugin interprets a manifest's rules. The first matching rule decides;
// no match abstains.
type RulePlugin struct {
	manifest Manifest
	verdicts []command.Verdict
	segment  string
	logger   *slog.Logger
}

// NewRulePlugin validates m and builds its plugin.
func NewRulePlugin(m Manifest) (*RulePlugin, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	verdicts := make([]command.Verdict, len(m.Rules))
	for i, r := range m.Rules {
		verdicts[i], _ = parseVerdict(r.Verdict)
	}
	return &RulePlugin{
		manifest: m,
		verdicts: verdicts,
		logger:   log.WithPlugin(m.Name),
	}, nil
}

func (p *RulePlugin) Name() string           { return p.manifest.Name }
func (p *RulePlugin) Version() string        { return p.manifest.Version }
func (p *RulePlugin) Dependencies() []string { return slices.Clone(p.manifest.Dependencies) }

// Manifest returns the manifest the plugin was built from.
func (p *RulePlugin) Manifest() Manifest { return p.manifest }

// Segment is the space assigned at Init, empty before.
func (p *RulePlugin) Segment() string { return p.segment }

func (p *RulePlugin) Init(c Capability) error {
	p.segment = c.Segment()
	p.logger.Debug("rule plugin ready", "segment", p.segment, "rules", len(p.manifest.Rules))
	return nil
}

func (p *RulePlugin) InterceptCell(cmd command.Command) (command.Verdict, error) {
	return p.decide(cmd), nil
}

func (p *RulePlugin) InterceptRow(cmd command.Command) (command.Verdict, error) {
	return p.decide(cmd), nil
}

func (p *RulePlugin) InterceptSpace(cmd command.Command) (command.Verdict, error) {
	return p.decide(cmd), nil
}

func (p *RulePlugin) decide(cmd command.Command) command.Verdict {
	for i, r := range p.manifest.Rules {
		if r.Matches(cmd) {
			return p.verdicts[i]
		}
	}
	return command.Abstain
}
