package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gridlink/internal/auth"
	"github.com/mattjoyce/gridlink/internal/command"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRIDLINK"

// Overrides are environment settings applied after the files are merged.
type Overrides struct {
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	APIListen   string `envconfig:"API_LISTEN"`
	APIKey      string `envconfig:"API_KEY"`
	JournalPath string `envconfig:"JOURNAL_PATH"`
	PluginsDir  string `envconfig:"PLUGINS_DIR"`
}

// Load reads configuration from a file or from config.yaml inside a
// directory. Included files may add plugins; scalar settings come from the
// root file. When a .checksums manifest sits next to the root file every
// loaded file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := rootPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := decodeFile(absPath, cfg); err != nil {
		return nil, err
	}

	files := []string{absPath}
	baseDir := filepath.Dir(absPath)
	for i, inc := range cfg.Include {
		path := includePath(baseDir, inc)
		part := &Config{}
		if err := decodeFile(path, part); err != nil {
			return nil, fmt.Errorf("include[%d]: %w", i, err)
		}
		if len(part.Include) > 0 {
			return nil, fmt.Errorf("include[%d]: nested includes are not supported", i)
		}
		if cfg.Plugins == nil {
			cfg.Plugins = make(map[string]PluginConf)
		}
		maps.Copy(cfg.Plugins, part.Plugins)
		files = append(files, path)
	}

	if err := VerifyChecksums(baseDir, files); err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// Relative paths resolve against the config file, not the cwd.
	cfg.PluginsDir = resolvePath(baseDir, cfg.PluginsDir)
	cfg.Journal.Path = resolvePath(baseDir, cfg.Journal.Path)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Source = absPath
	if cfg.Fingerprint, err = HashFile(absPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Files returns the directory of the root config file and every file a
// load would read, root first. Checksums are not consulted, so a config
// that fails verification can still be re-locked.
func Files(configPath string) (string, []string, error) {
	absPath, err := rootPath(configPath)
	if err != nil {
		return "", nil, err
	}
	var root Config
	if err := decodeFile(absPath, &root); err != nil {
		return "", nil, err
	}
	baseDir := filepath.Dir(absPath)
	files := []string{absPath}
	for i, inc := range root.Include {
		path := includePath(baseDir, inc)
		if _, err := os.Stat(path); err != nil {
			return "", nil, fmt.Errorf("include[%d]: %w", i, err)
		}
		files = append(files, path)
	}
	return baseDir, files, nil
}

// rootPath resolves a file or a directory holding config.yaml.
func rootPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

func includePath(baseDir, inc string) string {
	path := interpolateEnv(inc)
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), into); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ApplyEnv overlays GRIDLINK_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o Overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Service.LogLevel, o.LogLevel)
	set(&cfg.Service.LogFormat, o.LogFormat)
	set(&cfg.API.Listen, o.APIListen)
	set(&cfg.API.APIKey, o.APIKey)
	set(&cfg.Journal.Path, o.JournalPath)
	set(&cfg.PluginsDir, o.PluginsDir)
	return nil
}

// interpolateEnv replaces ${VAR} with the value of the environment variable.
// Unset variables expand to the empty string.
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Service.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q (must be debug, info, warn, or error)", cfg.Service.LogLevel)
	}
	switch cfg.Service.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q (must be json or text)", cfg.Service.LogFormat)
	}

	if cfg.Grid.TableOwner == "" {
		return fmt.Errorf("grid.table_owner is required")
	}
	if cfg.Grid.Columns < 0 {
		return fmt.Errorf("grid.columns must not be negative")
	}
	if cfg.Grid.MaxColumns < 1 {
		return fmt.Errorf("grid.max_columns must be at least 1")
	}
	if cfg.Grid.Columns > cfg.Grid.MaxColumns {
		return fmt.Errorf("grid.columns %d exceeds grid.max_columns %d", cfg.Grid.Columns, cfg.Grid.MaxColumns)
	}
	if _, clash := cfg.Plugins[cfg.Grid.TableOwner]; clash {
		return fmt.Errorf("plugin %q clashes with grid.table_owner", cfg.Grid.TableOwner)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when the API is enabled")
	}
	if err := validateWebhooks(cfg.Webhooks); err != nil {
		return err
	}
	for i, tok := range cfg.API.Tokens {
		if strings.TrimSpace(tok.Token) == "" {
			return fmt.Errorf("api.tokens[%d]: token is required", i)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("api.tokens[%d]: at least one scope is required", i)
		}
		for _, sc := range tok.Scopes {
			if !auth.ValidScope(sc) {
				return fmt.Errorf("api.tokens[%d]: unknown scope %q", i, sc)
			}
		}
	}
	return nil
}

func validateWebhooks(wc *WebhooksConfig) error {
	if wc == nil || len(wc.Endpoints) == 0 {
		return nil
	}
	if wc.Listen == "" {
		return fmt.Errorf("webhooks.listen is required when endpoints are configured")
	}
	seen := make(map[string]struct{}, len(wc.Endpoints))
	for i, ep := range wc.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("webhooks.endpoints[%d]: path %q must start with /", i, ep.Path)
		}
		if _, dup := seen[ep.Path]; dup {
			return fmt.Errorf("webhooks.endpoints[%d]: duplicate path %q", i, ep.Path)
		}
		seen[ep.Path] = struct{}{}
		if _, _, err := command.ParseRef(ep.Command); err != nil {
			return fmt.Errorf("webhooks.endpoints[%d]: %w", i, err)
		}
		if ep.Secret == "" {
			return fmt.Errorf("webhooks.endpoints[%d]: secret is required", i)
		}
		if ep.SignatureHeader == "" {
			return fmt.Errorf("webhooks.endpoints[%d]: signature_header is required", i)
		}
	}
	return nil
}
