package cmd

import (
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cloudcli-push/internal/config"
	"github.com/shaharia-lab/cloudcli-push/internal/logger"
)

// NewVAPIDCmd returns the "vapid" command group.
func NewVAPIDCmd(cfg *config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vapid",
		Short: "Inspect or create VAPID keys",
	}
	cmd.AddCommand(newVAPIDShowCmd(cfg), newVAPIDGenerateCmd())
	return cmd
}

func newVAPIDShowCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the VAPID public key, creating and persisting a keypair if none exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := newKeyManager(cfg, logger.Discard()).Identity(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "public key: %s\n", id.PublicKey)
			_, _ = fmt.Fprintf(out, "subject:    %s\n", id.Subject)
			if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
				_, _ = fmt.Fprintln(out, "source:     environment")
			} else {
				_, _ = fmt.Fprintf(out, "source:     %s\n", cfg.VAPIDKeysFile())
			}
			return nil
		},
	}
}

func newVAPIDGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh keypair and print it as environment variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generating VAPID keys: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", pub)
			_, _ = fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
