// Command stylesync extracts design-token mappings from a design document
// snapshot and applies exported mappings back to a token store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/gnana997/stylesync/pkg/tokens/sqlitestore"
	"github.com/gnana997/stylesync/pkg/util"
)

const version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stylesync: %v\n", err)
		os.Exit(1)
	}
}

// app holds the persistent flags and what PersistentPreRunE derives from them.
type app struct {
	configPath   string
	catalogPath  string
	documentPath string
	storeKind    string
	storeDSN     string
	logLevel     string
	logFormat    string
	jsonOutput   bool

	cfg    *ProjectConfig
	logger *slog.Logger
	stdin  io.Reader
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{stdin: stdin}

	rootCmd := &cobra.Command{
		Use:           "stylesync",
		Short:         "Map design selections to design-system tokens",
		Long:          "stylesync captures the styles of selected design elements, maps them to DS4DS tokens and applies exported mappings to a token store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfigPath, "project config file")
	flags.StringVar(&a.catalogPath, "catalog", "", "catalog JSON or TS/JS schema (default: embedded DS4DS catalog)")
	flags.StringVarP(&a.documentPath, "document", "d", "", "design document snapshot")
	flags.StringVar(&a.storeKind, "store", "", "token store backend (memory, sqlite)")
	flags.StringVar(&a.storeDSN, "store-dsn", "", "token store data source, e.g. tokens.db")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVar(&a.jsonOutput, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(
		newServeCmd(a),
		newInspectCmd(a),
		newExtractCmd(a),
		newPreviewCmd(a),
		newApplyCmd(a),
		newCollectionsCmd(a),
		newCatalogCmd(a),
		newStoreCmd(a),
		newSetupCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the project config and builds the logger. Logs go to stderr
// so stdout stays free for command output and the MCP transport.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadProjectConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", a.configPath, err)
	}
	if cfg == nil {
		cfg = &ProjectConfig{}
	}
	a.cfg = cfg

	logCfg := util.DefaultLoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	if lvl := firstNonEmpty(a.logLevel, cfg.Log.Level); lvl != "" {
		logCfg.Level = util.LogLevel(lvl)
	}
	if format := firstNonEmpty(a.logFormat, cfg.Log.Format); format != "" {
		logCfg.Format = util.LogFormat(format)
	}
	a.logger = util.NewLogger(logCfg)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stylesync %s\n", version)
			return err
		},
	}
}
