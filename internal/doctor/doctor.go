// Package doctor validates gridlink configuration, plugin setup and the
// structural invariants of a running grid.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/gridlink/internal/config"
	"github.com/mattjoyce/gridlink/internal/plugin"
	"github.com/mattjoyce/gridlink/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Subject  string  `json:"subject"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

func (r *Result) addError(category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (r *Result) addWarning(category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// Doctor validates configuration against discovered plugins.
type Doctor struct {
	cfg      *config.Config
	registry *plugin.Registry
}

// New creates a Doctor from a loaded config and plugin registry.
func New(cfg *config.Config, registry *plugin.Registry) *Doctor {
	if registry == nil {
		registry = plugin.NewRegistry()
	}
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs every config check and returns the combined result.
func (d *Doctor) Validate() *Result {
	r := &Result{Subject: "Configuration"}
	for _, check := range []func(*Result){
		d.checkPaths,
		d.checkTableOwner,
		d.checkPluginRefs,
		d.checkDependencies,
		d.checkListeners,
		d.checkUnused,
	} {
		check(r)
	}
	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) checkPaths(r *Result) {
	switch _, err := os.Stat(d.cfg.PluginsDir); {
	case d.cfg.PluginsDir == "":
		r.addError("service", "plugins_dir", "plugins_dir is required")
	case err != nil:
		r.addWarning("service", "plugins_dir", fmt.Sprintf("plugins_dir %s is not readable: %v", d.cfg.PluginsDir, err))
	}
	if !d.cfg.Journal.Enabled {
		return
	}
	if d.cfg.Journal.Path == "" {
		r.addError("journal", "journal.path", "journal.path is required when the journal is enabled")
	} else if err := storage.CheckLocal(d.cfg.Journal.Path); err != nil {
		r.addError("journal", "journal.path", err.Error())
	}
}

// checkTableOwner: the table owner is the origin of host-created
// segments, so no plugin may share its name.
func (d *Doctor) checkTableOwner(r *Result) {
	owner := d.cfg.Grid.TableOwner
	if owner == "" {
		r.addError("grid", "grid.table_owner", "table_owner is required")
		return
	}
	if _, clash := d.registry.Get(owner); clash {
		r.addError("grid", "grid.table_owner", fmt.Sprintf("discovered plugin %q uses the table owner name", owner))
	}
}

// checkPluginRefs reports enabled plugins that were never discovered and
// manifests discovery had to skip.
func (d *Doctor) checkPluginRefs(r *Result) {
	for name, pc := range d.cfg.Plugins {
		if _, found := d.registry.Get(name); pc.Enabled && !found {
			r.addError("plugin_refs", "plugins."+name, fmt.Sprintf("plugin %q in config but not found in plugins_dir", name))
		}
	}
	for _, s := range d.registry.Skipped() {
		r.addWarning("plugin_refs", s.Path, fmt.Sprintf("manifest skipped: %v", s.Err))
	}
}

// checkDependencies orders the enabled plugins exactly as a grid would.
func (d *Doctor) checkDependencies(r *Result) {
	var enabled []plugin.Plugin
	for _, p := range d.registry.Plugins() {
		if d.cfg.PluginEnabled(p.Name()) {
			enabled = append(enabled, p)
		}
	}
	_, err := plugin.Resolve(enabled)
	if err == nil {
		return
	}
	field := "plugins"
	var depErr *plugin.DependencyError
	if errors.As(err, &depErr) {
		field = "plugins." + depErr.Plugin
	}
	r.addError("dependencies", field, err.Error())
}

func (d *Doctor) checkListeners(r *Result) {
	api := d.cfg.API
	hooks := d.cfg.Webhooks != nil && len(d.cfg.Webhooks.Endpoints) > 0
	if !api.Enabled {
		if hooks {
			r.addWarning("api", "webhooks", "webhooks configured but the API is disabled; serve will not start them")
		}
		return
	}
	if api.Listen == "" {
		r.addError("api", "api.listen", "api.listen is required when API is enabled")
	}
	if api.APIKey == "" && len(api.Tokens) == 0 {
		r.addWarning("api", "api.api_key", "API enabled but no authentication configured")
	}
	if hooks && d.cfg.Webhooks.Listen == api.Listen {
		r.addError("api", "webhooks.listen", fmt.Sprintf("webhooks and API both listen on %s", api.Listen))
	}
}

// checkUnused warns about discovered plugins the config never mentions.
// With no plugins section at all every plugin is implicitly enabled.
func (d *Doctor) checkUnused(r *Result) {
	if len(d.cfg.Plugins) == 0 {
		return
	}
	for _, p := range d.registry.Plugins() {
		if _, listed := d.cfg.Plugins[p.Name()]; !listed {
			r.addWarning("unused", "", fmt.Sprintf("plugin %q discovered but not referenced in config", p.Name()))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder
	subject := r.Subject
	if subject == "" {
		subject = "Configuration"
	}

	if r.Valid && len(r.Warnings) == 0 {
		fmt.Fprintf(&b, "%s valid.\n", subject)
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "%s valid (%d warning(s))\n", subject, len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "%s invalid (%d error(s), %d warning(s))\n", subject, len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
