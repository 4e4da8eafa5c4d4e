package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/GateLink/internal/http/middleware"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the 'token' command, which signs a management API token.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the management API",
		Example: "  gatelinkctl token --user alice\n" +
			"  gatelinkctl token --user ci-bot --ttl 720h",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret (JWT_SECRET) is not set")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			signed, err := middleware.IssueUserToken([]byte(cfg.Auth.JWTSecret), user, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner id carried in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")

	return cmd
}
