package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/cli/cmd/resolve"
	"ocm.software/open-component-model/appmodel/cli/cmd/validate"
	"ocm.software/open-component-model/appmodel/cli/cmd/version"
	configv1 "ocm.software/open-component-model/appmodel/cli/configuration/v1"
	ocmctx "ocm.software/open-component-model/appmodel/cli/internal/context"
	"ocm.software/open-component-model/appmodel/cli/internal/flags/log"
)

// Execute runs the root command. It is called by main.main().
func Execute() {
	err := New().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appmodel [sub-command]",
		Short: "Resolve application models of extension based applications",
		Long: `The appmodel command line client resolves the runtime and deployment
  classpaths of applications built from artifacts and extensions, and
  validates the repository documents describing them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: PreRunE,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	configv1.RegisterConfigFlag(cmd)
	log.RegisterLoggingFlags(cmd.PersistentFlags())
	cmd.AddCommand(resolve.New())
	cmd.AddCommand(validate.New())
	cmd.AddCommand(version.New())
	return cmd
}

// PreRunE sets up logging and loads the configuration for all sub commands.
func PreRunE(cmd *cobra.Command, _ []string) error {
	logger, err := log.GetBaseLogger(cmd.Flags(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("could not retrieve logger: %w", err)
	}
	slog.SetDefault(logger)
	cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))

	cfg, err := configv1.GetConfigForCommand(cmd)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	ocmctx.Register(cmd, cfg)
	slogcontext.FromCtx(cmd.Context()).DebugContext(cmd.Context(), "loaded configuration",
		slog.String("mode", cfg.Mode), slog.Int("overrides", len(cfg.Overrides)))
	return nil
}
