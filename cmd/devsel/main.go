// devsel discovers which configured device is attached to this host.
//
// It reads a device catalog, probes each enabled device over serial or
// TCP, and settles on the one that answers. The serve command keeps doing
// so in the background and exposes the result over HTTP, WebSocket and
// MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devsel/internal/catalogfile"
	"github.com/nerrad567/devsel/internal/device"
	"github.com/nerrad567/devsel/internal/infrastructure/config"
	"github.com/nerrad567/devsel/internal/infrastructure/database"
	"github.com/nerrad567/devsel/internal/infrastructure/logging"
	"github.com/nerrad567/devsel/internal/session"
	"github.com/nerrad567/devsel/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor DEVSEL_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the environment variable holding the config path.
	configEnv = "DEVSEL_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the CLI, separated from main for testability.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	cfg        *config.Config
	log        *logging.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "devsel",
		Short:         "Detect which configured device is attached",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newDetectCmd(a),
		newPortsCmd(a),
		newHistoryCmd(a),
		newDBCmd(a),
		newServeCmd(a),
	)
	return root
}

// load resolves and reads the configuration, then builds the logger.
// A missing default config file falls back to built-in defaults; an
// explicitly named one must exist.
func (a *app) load() error {
	path, explicit := a.resolveConfigPath()
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.NewWithWriter(cfg.Logging, version, a.logWriter())
	if path != "" {
		a.log.Debug("configuration loaded", "path", path)
	}
	return nil
}

// resolveConfigPath reports the config path and whether the user chose it.
func (a *app) resolveConfigPath() (string, bool) {
	if a.configPath != "" {
		return a.configPath, true
	}
	if path := os.Getenv(configEnv); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

func (a *app) logWriter() io.Writer {
	if a.cfg.Logging.Output == "stdout" {
		return a.stdout
	}
	return a.stderr
}

// loadCatalog reads the configured catalog file.
func (a *app) loadCatalog() (*device.Catalog, error) {
	src, err := catalogfile.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	c := device.NewCatalog(src)
	a.log.Debug("catalog loaded", "path", a.cfg.Catalog.Path, "devices", c.Len())
	return c, nil
}

// sessionFactory builds probes with the configured default timeout.
func (a *app) sessionFactory() device.SessionFactory {
	f := session.NewFactory(
		session.WithTimeout(a.cfg.Detection.ProbeTimeout),
		session.WithLogger(a.log),
	)
	return f.Open
}

// dialDatabase opens the history database without touching its schema.
func (a *app) dialDatabase() (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openDatabase opens the history database and applies pending migrations.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := a.dialDatabase()
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
