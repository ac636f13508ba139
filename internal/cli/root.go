package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
)

// RootOptions holds global flags and the configuration loaded from them
type RootOptions struct {
	ConfigPath string
	Config     *config.AppConfig
}

// NewRootCommand creates the root command for the userpool CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "userpool",
		Short: "Persistent identity pool",
		Long:  "Stores user records per pool and resolves them by username or configured username attributes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.App.Log); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.Config = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (default ./config.yaml)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))

	return cmd
}
