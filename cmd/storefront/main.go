// Command storefront runs the storefront web server and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/logging"
)

// cliEnv is loaded once by the root command and shared by subcommands.
type cliEnv struct {
	cfg    config.Config
	logger zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &cliEnv{}
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Supplement storefront server and tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = logging.New(cfg.LogLevel, cfg.Production())
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(rt),
		newMigrateCmd(rt),
		newSeedCmd(rt),
		newImportCmd(rt),
		newChatCmd(rt),
		newAffiliatesCmd(rt),
		newCommissionsCmd(rt),
	)
	return root
}
