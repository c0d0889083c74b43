package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/config"
	"github.com/mattjoyce/gridlink/internal/doctor"
	"github.com/mattjoyce/gridlink/internal/inspect"
	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/storage"
	"github.com/mattjoyce/gridlink/internal/store"
)

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: gridctl config check [--config PATH] [--format human|json] [--strict]")
			fmt.Println("Validate configuration, plugin manifests and plugin dependencies.")
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: gridctl config lock [--config PATH] [--dry-run]")
			fmt.Println("Hash the config file and its includes into .checksums.")
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: gridctl config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	format := fs.String("format", "human", "Output format: human or json")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *format != "human" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Invalid --format %q (must be human or json)\n", *format)
		return 1
	}

	result := checkConfig(configPathOrDefault(*configPath))
	if *strict && len(result.Warnings) > 0 {
		result.Valid = false
	}

	if *format == "json" {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}
	if !result.Valid {
		return 1
	}
	return 0
}

// checkConfig folds load and discovery failures into a doctor result so
// every outcome prints the same way.
func checkConfig(path string) *doctor.Result {
	log.SetupWith("error", "text", os.Stderr)

	cfg, err := config.Load(path)
	if err != nil {
		return &doctor.Result{
			Subject: "Configuration",
			Errors:  []doctor.Issue{{Category: "load", Message: err.Error()}},
		}
	}
	registry, err := discoverPlugins(cfg)
	if err != nil {
		return &doctor.Result{
			Subject: "Configuration",
			Errors:  []doctor.Issue{{Category: "plugins", Field: "plugins_dir", Message: err.Error()}},
		}
	}
	return doctor.New(cfg, registry).Validate()
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "List the files that would be hashed")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	dir, files, err := config.Files(configPathOrDefault(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *dryRun {
		for _, f := range files {
			rel, _ := filepath.Rel(dir, f)
			fmt.Printf("would hash %s\n", rel)
		}
		return 0
	}

	manifest, err := config.WriteChecksums(dir, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %d file(s) into %s\n", len(manifest.Hashes), filepath.Join(dir, config.ChecksumFile))
	return 0
}

// --- journal ---

func runJournalNoun(args []string) int {
	if len(args) < 1 {
		printJournalNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJournalNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: gridctl journal list [--config PATH] [--kind K] [--target ID] [--origin NAME] [--outcome O] [--after SEQ] [--limit N] [--json]")
			return 0
		}
		return runJournalList(actionArgs)
	case "prune":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: gridctl journal prune --keep N [--config PATH]")
			return 0
		}
		return runJournalPrune(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n", action)
		return 1
	}
}

func printJournalNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: gridctl journal <action> [flags]")
	fmt.Fprintln(w, "Actions: list, prune")
}

// openJournal loads the config and opens its journal database.
func openJournal(configPath string) (*journal.Journal, func(), error) {
	cfg, err := config.Load(configPathOrDefault(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Journal.Enabled {
		return nil, nil, errors.New("journal is disabled in config")
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return nil, nil, fmt.Errorf("journal database: %w", err)
	}
	log.SetupWith("error", "text", os.Stderr)
	db, err := storage.OpenSQLite(context.Background(), cfg.Journal.Path)
	if err != nil {
		return nil, nil, err
	}
	return journal.New(db, nil), func() { _ = db.Close() }, nil
}

func runJournalList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	kind := fs.String("kind", "", "Only this command kind (cell, row, space)")
	target := fs.String("target", "", "Only commands addressed to this id")
	origin := fs.String("origin", "", "Only commands issued by this plugin")
	outcome := fs.String("outcome", "", "Only this outcome")
	after := fs.Int64("after", 0, "Only entries after this sequence number")
	limit := fs.Int("limit", journal.DefaultLimit, "Maximum entries")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	f := journal.Filter{
		Target:   *target,
		Origin:   *origin,
		Outcome:  command.Outcome(*outcome),
		AfterSeq: *after,
		Limit:    *limit,
	}
	if *kind != "" {
		k, err := command.ParseKind(*kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		f.Kind = k
	}

	j, closeFn, err := openJournal(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	entries, err := j.List(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		if entries == nil {
			entries = []journal.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tCOMMAND\tTARGET\tOUTCOME\tORIGIN")
	for _, e := range entries {
		origin := e.Origin
		if origin == "" {
			origin = "host"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%s\t%s\t%s\n",
			e.Seq, e.DispatchedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Name, e.Target, e.Outcome, origin)
	}
	_ = tw.Flush()
	return 0
}

func runJournalPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	keep := fs.Int("keep", -1, "Number of newest entries to keep")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *keep < 0 {
		fmt.Fprintln(os.Stderr, "Usage: gridctl journal prune --keep N [--config PATH]")
		return 1
	}

	j, closeFn, err := openJournal(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	removed, err := j.Prune(context.Background(), *keep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %d entr(ies), kept at most %d\n", removed, *keep)
	return 0
}

// --- inspect ---

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output JSON")

	// Allow the row id before or after the flags.
	var rowID string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		rowID, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if rowID == "" && fs.NArg() == 1 {
		rowID = fs.Arg(0)
	}
	if rowID == "" {
		printInspectHelp()
		return 1
	}

	j, closeFn, err := openJournal(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	// The live grid belongs to the server; offline the journal is all there is.
	var snap store.Snapshot[json.RawMessage]
	var out string
	if *jsonOut {
		out, err = inspect.BuildJSONReport(context.Background(), snap, j, rowID)
	} else {
		out, err = inspect.BuildReport(context.Background(), snap, j, rowID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(out)
	return 0
}
