// Command lucid runs the reflective dialogue service: an interactive chat,
// a gRPC server, corpus ingestion and offline inspection of recorded turns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/config"
	"github.com/danielpatrickdp/lucid/internal/logging"
)

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region root
// cli carries the flag values and what PersistentPreRunE derives from them.
type cli struct {
	configPath string
	dbPath     string
	logLevel   string
	testMode   bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "lucid",
		Short:         "Reflective dialogue: one framing statement, one open question",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", envOr("LUCID_CONFIG", "lucid.yaml"), "path to YAML config")
	flags.StringVar(&c.dbPath, "db", "", "database path (overrides config and LUCID_DB)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&c.testMode, "test-mode", false, "static generation and hashing embeddings, no API keys needed")

	root.AddCommand(
		newChatCmd(c),
		newServeCmd(c),
		newIngestCmd(c),
		newSessionsCmd(c),
		newStatsCmd(c),
		newAuditCmd(c),
		newReplayCmd(c),
	)
	return root
}

// load reads the config, applies flag overrides and builds the logger.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.DatabasePath = c.dbPath
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.testMode {
		cfg.TestMode = true
		cfg.Generation.Provider = "static"
		cfg.Embedding.Provider = "hashing"
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = log
	return nil
}

// #endregion root

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
