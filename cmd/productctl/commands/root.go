// Package commands implements the productctl command tree.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/productstore/internal/config"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// app holds the global flags and the store opened for the running command.
type app struct {
	file       string
	header     string
	atomic     bool
	outputJSON bool
	verbose    bool

	logger  *zap.Logger
	records *store.FileStore
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "productctl",
		Short: "Manage the product record file",
		Long: `productctl reads and edits the flat-file product store used by the API
server. Records have no ids; update and delete act on the first record whose
name, price and quantity match the values given.

Defaults for --file, --header and --atomic come from the server configuration
(APP_STORE_PATH, APP_STORE_HEADER, APP_STORE_ATOMIC, APP_CONFIG_FILE, .env).

Examples:
  productctl add Pen 1.50 100
  productctl list
  productctl update Pen 1.50 100 --price 1.75
  productctl delete Pen 1.75 100
  productctl import legacy.csv --json`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.file, "file", "f", config.DefaultStorePath, "record file path")
	flags.StringVar(&a.header, "header", config.DefaultStoreHeader, "header line written when the record file is created")
	flags.BoolVar(&a.atomic, "atomic", config.DefaultStoreAtomic, "rewrite the record file through a temp file and rename")
	flags.BoolVar(&a.outputJSON, "json", false, "output as JSON (for piping)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log store activity to stderr")

	root.AddCommand(
		newListCommand(a),
		newAddCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newImportCommand(a),
	)

	return root
}

// Execute runs the productctl command tree.
func Execute() error {
	return NewRootCommand().Execute()
}

// open resolves store settings and opens the record file. Flags given on the
// command line win over configuration.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("file") {
		a.file = cfg.Store.Path
	}
	if !flags.Changed("header") {
		a.header = cfg.Store.Header
	}
	if !flags.Changed("atomic") {
		a.atomic = cfg.Store.Atomic
	}

	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)

	records, err := store.NewFileStore(a.file,
		store.WithHeader(a.header),
		store.WithAtomicWrites(a.atomic),
		store.WithLogger(a.logger),
	)
	if records == nil {
		return fmt.Errorf("opening record file: %w", err)
	}
	// A degraded store is still usable; the command reports its own error.
	a.records = records

	return nil
}

// newLogger writes console-encoded logs to w. Only warnings and errors are
// shown unless verbose is set.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
