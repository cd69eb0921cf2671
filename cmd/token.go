package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cloudcli-push/internal/api"
	"github.com/shaharia-lab/cloudcli-push/internal/config"
)

// NewTokenCmd returns the "token" subcommand that mints a bearer token.
func NewTokenCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user (requires CLOUDCLI_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := api.GenerateToken(cfg.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
