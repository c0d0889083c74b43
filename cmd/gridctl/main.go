package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/gridlink/internal/config"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/inspect"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/plugin"
	"github.com/mattjoyce/gridlink/internal/tui"
	"github.com/mattjoyce/gridlink/internal/tui/tokenmgr"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "demo":
		if hasHelpFlag(args) {
			printDemoHelp()
			return 0
		}
		return runDemo(args)
	case "monitor":
		if hasHelpFlag(args) {
			printMonitorHelp()
			return 0
		}
		return runMonitor(args)
	case "token":
		return runToken(args)
	case "config":
		return runConfigNoun(args)
	case "journal":
		return runJournalNoun(args)
	case "inspect":
		if hasHelpFlag(args) {
			printInspectHelp()
			return 0
		}
		return runInspect(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: gridctl version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("gridctl %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`gridctl - grid coordination core with plugin interception

Usage:
  gridctl <command> [flags]

Commands:
  serve             Run a grid behind the HTTP API in the foreground
  demo              Drive an in-process grid from the terminal
  monitor           Watch a running server (layout, health, events)
  token             Pick scopes and print a token entry for config.yaml
  inspect <row>     Show the journaled history of a row
  config check      Validate configuration and plugin manifests
  config lock       Record integrity hashes of the config files
  journal list      List journaled commands
  journal prune     Drop all but the newest journal entries
  version           Show version information
  help              Show this help message

Use 'gridctl <command> --help' for command flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printServeHelp() {
	fmt.Println("Usage: gridctl serve [--config PATH]")
	fmt.Println("Load plugins, open the journal and serve the grid over HTTP until interrupted.")
}

func printDemoHelp() {
	fmt.Println("Usage: gridctl demo [--config PATH] [--columns N]")
	fmt.Println("Drive an in-process grid. With --config, enabled plugins are loaded.")
}

func printMonitorHelp() {
	fmt.Println("Usage: gridctl monitor [--api-url URL] [--api-key TOKEN]")
	fmt.Println("Watch a running server. The token needs grid:ro and events:ro.")
}

func printInspectHelp() {
	fmt.Println("Usage: gridctl inspect <row_id> [--config PATH] [--json]")
	fmt.Println("Report a row's journaled history, including commands sent to its cells.")
}

// configPathOrDefault falls back to ./config.yaml when --config is not set.
func configPathOrDefault(p string) string {
	if p != "" {
		return p
	}
	return "config.yaml"
}

// discoverPlugins scans cfg.PluginsDir. A missing directory means no
// plugins, not an error.
func discoverPlugins(cfg *config.Config) (*plugin.Registry, error) {
	if _, err := os.Stat(cfg.PluginsDir); errors.Is(err, os.ErrNotExist) {
		log.WithComponent("main").Info("plugins directory missing, running without plugins", "plugins_dir", cfg.PluginsDir)
		return plugin.NewRegistry(), nil
	}
	return plugin.Discover(log.WithComponent("plugin"), cfg.PluginsDir)
}

// enabledPlugins returns the discovered plugins the config enables.
func enabledPlugins(cfg *config.Config, registry *plugin.Registry) []plugin.Plugin {
	var out []plugin.Plugin
	for _, p := range registry.Plugins() {
		if cfg.PluginEnabled(p.Name()) {
			out = append(out, p)
		}
	}
	return out
}

func runDemo(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	columns := fs.Int("columns", 0, "Cells per inserted row (default grid.columns)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg := config.Defaults()
	var plugins []plugin.Plugin
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	// The TUI owns the terminal; logs would tear the screen.
	log.SetupWith("error", "text", os.Stderr)
	if *configPath != "" {
		registry, err := discoverPlugins(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Plugin discovery failed: %v\n", err)
			return 1
		}
		plugins = enabledPlugins(cfg, registry)
	}
	if *columns <= 0 {
		*columns = cfg.Grid.Columns
	}
	*columns = min(*columns, cfg.Grid.MaxColumns)

	g, err := grid.New[[]string](grid.Options{
		TableOwner: cfg.Grid.TableOwner,
		KeyStep:    cfg.Grid.KeyStep,
	}, plugins...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build grid: %v\n", err)
		return 1
	}
	defer g.Close()

	if _, err := tea.NewProgram(tui.NewDemo(g, *columns), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	fmt.Print(inspect.Overview(g.Snapshot()))
	return 0
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Server API URL")
	apiKey := fs.String("api-key", os.Getenv("GRIDLINK_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or GRIDLINK_API_KEY env var.")
		return 1
	}

	if _, err := tea.NewProgram(tui.NewMonitor(*apiURL, *apiKey)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runToken(args []string) int {
	if hasHelpFlag(args) {
		fmt.Println("Usage: gridctl token")
		fmt.Println("Pick scopes interactively and print a new api.tokens entry.")
		return 0
	}
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: gridctl token")
		return 1
	}

	final, err := tea.NewProgram(tokenmgr.New()).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	scopes := final.(tokenmgr.Model).Selected()
	if scopes == nil {
		return 1
	}
	tok, err := tokenmgr.NewToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	snippet, err := tokenmgr.Snippet(tok, scopes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(snippet)
	return 0
}
