package config

// Config represents the complete gridlink configuration.
type Config struct {
	Include    []string              `yaml:"include,omitempty"`
	Service    ServiceConfig         `yaml:"service"`
	Grid       GridConfig            `yaml:"grid"`
	PluginsDir string                `yaml:"plugins_dir"`
	Plugins    map[string]PluginConf `yaml:"plugins"`
	Journal    JournalConfig         `yaml:"journal"`
	API        APIConfig             `yaml:"api,omitempty"`
	Webhooks   *WebhooksConfig       `yaml:"webhooks,omitempty"`

	// Source is the absolute path of the root file and Fingerprint its
	// BLAKE3 hash. Both are set by Load.
	Source      string `yaml:"-"`
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// GridConfig defines the shape of the grid instance.
type GridConfig struct {
	TableOwner  string `yaml:"table_owner"`
	KeyStep     uint32 `yaml:"key_step"`
	Columns     int    `yaml:"columns"`
	MaxColumns  int    `yaml:"max_columns"`
	EventBuffer int    `yaml:"event_buffer"`
}

// PluginConf enables a discovered plugin by name.
type PluginConf struct {
	Enabled bool `yaml:"enabled"`
}

// JournalConfig defines the sqlite command journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool        `yaml:"enabled"`
	Listen  string      `yaml:"listen"`
	APIKey  string      `yaml:"api_key"`
	Tokens  []TokenConf `yaml:"tokens,omitempty"`
}

// TokenConf is a scoped bearer token.
type TokenConf struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// WebhooksConfig defines signed inbound hooks that dispatch grid commands.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint maps one POST path onto one command. The request body
// becomes the payload. With no Target the request must carry ?target=.
type WebhookEndpoint struct {
	Path            string `yaml:"path"`
	Command         string `yaml:"command"`
	Target          string `yaml:"target,omitempty"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
	MaxBodySize     string `yaml:"max_body_size,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "gridlink",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Grid: GridConfig{
			TableOwner:  "table",
			KeyStep:     1000,
			Columns:     4,
			MaxColumns:  64,
			EventBuffer: 256,
		},
		PluginsDir: "./plugins",
		Plugins:    make(map[string]PluginConf),
		Journal: JournalConfig{
			Path: "./data/journal.db",
		},
		API: APIConfig{
			Listen: "localhost:8080",
		},
	}
}

// PluginEnabled reports whether a discovered plugin should be loaded. With
// no plugins section every discovered plugin is enabled.
func (c *Config) PluginEnabled(name string) bool {
	if len(c.Plugins) == 0 {
		return true
	}
	return c.Plugins[name].Enabled
}
