package plugin

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const manifestFilename = "manifest.yaml"

// Skipped is a manifest that was found but not loaded.
type Skipped struct {
	Path string
	Err  error
}

// Registry holds discovered rule plugins by name in discovery order.
type Registry struct {
	byName  map[string]*RulePlugin
	order   []string
	skipped []Skipped
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*RulePlugin)}
}

func (r *Registry) Get(name string) (*RulePlugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *Registry) Len() int { return len(r.order) }

// Plugins returns the registered plugins in discovery order.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// Skipped lists manifests discovery rejected, duplicates included.
func (r *Registry) Skipped() []Skipped { return r.skipped }

// Add registers p; a second plugin with the same name is an error.
func (r *Registry) Add(p *RulePlugin) error {
	if _, dup := r.byName[p.Name()]; dup {
		return fmt.Errorf("plugin %q already registered", p.Name())
	}
	r.byName[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Discover walks each root for manifest.yaml files. Roots are scanned in
// order and a name seen twice keeps the first plugin. A broken manifest is
// logged and recorded in Skipped; only an unusable root fails discovery.
// A nil logger discards.
func Discover(logger *slog.Logger, roots ...string) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dirs, err := pluginRoots(roots)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, root := range dirs {
		walk := func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}
			dir := filepath.Dir(path)
			p, err := loadManifestDir(dir)
			if err == nil {
				err = reg.Add(p)
			}
			if err != nil {
				logger.Warn("plugin skipped", "path", dir, "error", err)
				reg.skipped = append(reg.skipped, Skipped{Path: dir, Err: err})
				return nil
			}
			logger.Info("plugin loaded", "plugin", p.Name(), "version", p.Version(), "rules", len(p.Manifest().Rules), "path", dir)
			return nil
		}
		if err := filepath.WalkDir(root, walk); err != nil {
			return nil, fmt.Errorf("scan plugin root %s: %w", root, err)
		}
	}
	return reg, nil
}

// pluginRoots makes roots absolute, drops blanks and repeats, and checks
// each is a directory.
func pluginRoots(roots []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool, len(roots))
	for _, root := range roots {
		if root = strings.TrimSpace(root); root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve plugin root %q: %w", root, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("plugin root does not exist: %s", abs)
		case err != nil:
			return nil, fmt.Errorf("stat plugin root: %w", err)
		case !info.IsDir():
			return nil, fmt.Errorf("plugin root is not a directory: %s", abs)
		}
		out = append(out, abs)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one plugin root is required")
	}
	return out, nil
}

// loadManifestDir parses and validates dir/manifest.yaml. World-writable
// plugin directories are refused.
func loadManifestDir(dir string) (*RulePlugin, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0o002 != 0 {
		return nil, fmt.Errorf("plugin directory is world-writable: %s", dir)
	}
	raw, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.Path = dir
	p, err := NewRulePlugin(m)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return p, nil
}
