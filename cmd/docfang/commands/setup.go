// Package commands implements the docfang CLI commands.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/config"
	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/staleness"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

// env bundles the configuration and stores every pipeline command needs.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	closeLog  func() error
	sessions  *session.Store
	ledger    *workflow.Store
	validator *staleness.Validator
}

// newEnv loads configuration from the persistent --config flag, sets up
// logging, and wires the session store, ledger store and staleness validator
// over the configured state directory.
func newEnv(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := config.ParseLevel(cfg.Log.Level)
	if debug {
		level = slog.LevelDebug
	}

	logger, closeLog := config.SetupLogger(cfg.Log.File, level)

	ledger := workflow.NewStore(cfg.StateDir)

	return &env{
		cfg:       cfg,
		logger:    logger,
		closeLog:  closeLog,
		sessions:  session.NewStore(session.ReportsDir(cfg.StateDir), logger),
		ledger:    ledger,
		validator: staleness.NewValidator(ledger, cfg.StateDir),
	}, nil
}

// Close releases logging resources.
func (e *env) Close() {
	err := e.closeLog()
	if err != nil {
		e.logger.Warn("closing log file failed", "error", err)
	}
}
