package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/zakazai/tracklog/internal/config"
	"github.com/zakazai/tracklog/internal/dataset"
	"github.com/zakazai/tracklog/internal/form"
	"github.com/zakazai/tracklog/internal/storage"
	"github.com/zakazai/tracklog/internal/types"
)

// options holds the global flags
type options struct {
	ConfigFile string
	DataDir    string
	Format     string
	LogLevel   string
}

// app is what the Before hook sets up for the commands
type app struct {
	cfg    *config.Config
	logger *types.Logger
	store  storage.Store
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var opts options
	state := &app{}

	return &cli.App{
		Name:  "tracklog",
		Usage: "Log mood, sleep and wellbeing entries to tabular files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML file with tracker definitions (built-in trackers when empty)",
				EnvVars:     []string{"TRACKLOG_CONFIG"},
				Destination: &opts.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Aliases:     []string{"d"},
				Usage:       "Directory for dataset files (default: next to the executable)",
				EnvVars:     []string{"TRACKLOG_DATA_DIR"},
				Destination: &opts.DataDir,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "Storage format: xlsx, csv, parquet, sqlite or memory",
				EnvVars:     []string{"TRACKLOG_FORMAT"},
				Destination: &opts.Format,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warning, error or none",
				EnvVars:     []string{"TRACKLOG_LOG_LEVEL"},
				Destination: &opts.LogLevel,
			},
		},
		Before: func(c *cli.Context) error {
			return state.setup(c, opts)
		},
		After: func(c *cli.Context) error {
			return state.close()
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create the configured datasets that do not exist yet",
				Action: func(c *cli.Context) error {
					for _, t := range state.cfg.Trackers {
						if len(t.Columns) == 0 {
							continue
						}
						fmt.Fprintf(c.App.Writer, "%s: %s\n", t.Dataset, state.store.Location(t.Dataset))
					}
					return nil
				},
			},
			{
				Name:  "trackers",
				Usage: "List the configured trackers",
				Action: func(c *cli.Context) error {
					for _, t := range state.cfg.Trackers {
						fmt.Fprintf(c.App.Writer, "%-12s %-28s -> %s\n", t.Name, t.Title, t.Dataset)
					}
					return nil
				},
			},
			{
				Name:  "datasets",
				Usage: "List the stored datasets",
				Action: func(c *cli.Context) error {
					return state.listDatasets(c)
				},
			},
			{
				Name:      "log",
				Usage:     "Fill in a tracker form interactively",
				ArgsUsage: "[tracker]",
				Action: func(c *cli.Context) error {
					return state.logEntry(c)
				},
			},
			{
				Name:      "append",
				Usage:     "Append one record given as field=value pairs",
				ArgsUsage: "<dataset> <field=value>...",
				Action: func(c *cli.Context) error {
					return state.appendRecord(c)
				},
			},
		},
	}
}

// executableDir is where datasets live unless configured otherwise
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func (a *app) setup(c *cli.Context, opts options) error {
	cfg, err := config.LoadConfig(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("format") {
		cfg.Format = opts.Format
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = opts.LogLevel
	}

	level, err := types.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = types.InitLogger(level, c.App.ErrWriter)
	a.cfg = cfg

	dataDir := cfg.DataDir
	switch {
	case c.IsSet("data-dir"):
		dataDir = opts.DataDir
	case dataDir == "":
		dataDir = executableDir()
	case !filepath.IsAbs(dataDir):
		dataDir = filepath.Join(executableDir(), dataDir)
	}

	a.store, err = storage.NewStorage(storage.StorageConfig{
		Type:   storage.StorageType(cfg.Format),
		Dir:    dataDir,
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.logger.Debug("using %s storage in %s", cfg.Format, dataDir)

	for _, t := range cfg.Trackers {
		if len(t.Columns) == 0 {
			continue
		}
		if err := dataset.Ensure(a.store, t.Dataset, t.Columns); err != nil {
			return err
		}
		a.logger.Debug("dataset %s ready at %s", t.Dataset, a.store.Location(t.Dataset))
	}
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		// stderr cannot always be synced
		_ = a.logger.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *app) logEntry(c *cli.Context) error {
	runner := form.NewRunner(c.App.Reader, c.App.Writer, a.store, a.logger)

	name := c.Args().First()
	if name == "" {
		titles := make([]string, len(a.cfg.Trackers))
		for i, t := range a.cfg.Trackers {
			titles[i] = t.Title
		}
		choice, err := runner.Choose("Go to", titles)
		if err != nil {
			return err
		}
		for _, t := range a.cfg.Trackers {
			if t.Title == choice {
				name = t.Name
				break
			}
		}
	}

	tracker, ok := a.cfg.Tracker(name)
	if !ok {
		return fmt.Errorf("unknown tracker %q (have: %s)", name, strings.Join(a.cfg.TrackerNames(), ", "))
	}
	return runner.Run(tracker)
}

// parseAssignments turns field=value arguments into a record, keeping
// argument order. Values are typed the same way stored text cells are.
func parseAssignments(args []string) (types.Record, error) {
	fields := make([]types.Field, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return types.Record{}, fmt.Errorf("expected field=value, got %q", arg)
		}
		fields = append(fields, types.Field{Name: strings.TrimSpace(key), Value: types.ParseValue(value)})
	}
	return types.NewRecord(fields...), nil
}

func (a *app) appendRecord(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: %s append <dataset> <field=value>...", c.App.Name)
	}
	name := c.Args().First()
	rec, err := parseAssignments(c.Args().Tail())
	if err != nil {
		return err
	}
	if err := dataset.Append(a.store, rec, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Data saved to: %s\n", a.store.Location(name))
	return nil
}

func (a *app) listDatasets(c *cli.Context) error {
	names, err := a.store.ShowTables()
	if err != nil {
		return err
	}

	summary := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		row := map[string]interface{}{
			"dataset":  name,
			"location": a.store.Location(name),
		}
		table, err := a.store.Load(name)
		if err != nil {
			a.logger.Warning("cannot read %s: %v", name, err)
			row["rows"] = "unreadable"
		} else {
			row["rows"] = len(table.Rows)
			row["columns"] = len(table.Columns)
		}
		summary = append(summary, row)
	}
	printFormattedResults(c.App.Writer, []string{"dataset", "rows", "columns", "location"}, summary)
	return nil
}
