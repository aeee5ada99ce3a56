// Command workmem manages per-workspace persistent memory for coding
// agents: remember facts, retrieve a ranked context block, pin, forget,
// and move snapshots between machines.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"workmem/internal/config"
	"workmem/internal/memory"
	"workmem/internal/workspace"
)

var (
	flagWorkspace string
	flagVerbose   bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "workmem",
	Short:         "Persistent per-workspace memory store",
	Long:          "workmem keeps typed memory entries per workspace and assembles\nrelevance-ranked, budget-bounded context blocks for agent prompts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if flagVerbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory (defaults to the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveWorkspace canonicalizes the --workspace flag (or the current
// directory) into the store key.
func resolveWorkspace() (string, error) {
	return workspace.Resolve(flagWorkspace)
}

// openService builds the configured backend and wraps it in a service.
// The returned cleanup must be called before exit.
func openService(ctx context.Context) (*memory.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var backend memory.Backend
	switch cfg.Backend {
	case config.BackendFile:
		backend, err = memory.NewFileBackend(cfg.DataDir)
	case config.BackendSQLite:
		if err = os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		backend, err = memory.NewSQLiteBackend(ctx, filepath.Join(cfg.DataDir, "workmem.db"))
	case config.BackendPostgres:
		backend, err = memory.NewPostgresBackend(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("failed to close backend", zap.Error(cerr))
		}
	}
	return memory.NewService(backend, logger), cleanup, nil
}
