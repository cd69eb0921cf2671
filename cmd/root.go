package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cloudcli-push/internal/build"
	"github.com/shaharia-lab/cloudcli-push/internal/config"
)

// NewRootCmd builds the command tree around cfg.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "cloudcli-push",
		Short:         "Web push notifications for CloudCLI",
		Long:          "Delivers CloudCLI session notifications to subscribed browsers using Web Push and VAPID.",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewWebCmd(cfg))
	root.AddCommand(NewVAPIDCmd(cfg))
	root.AddCommand(NewTokenCmd(cfg))
	return root
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
