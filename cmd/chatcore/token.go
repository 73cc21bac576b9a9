package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumspace/chatcore/internal/app"
	"github.com/quantumspace/chatcore/internal/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID   int64
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user-id is required")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			jwtCfg := app.JWTConfig(&cfg)
			if ttl > 0 {
				jwtCfg.TTL = ttl
			}
			token, err := auth.GenerateToken(jwtCfg, userID, username)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id to embed")
	cmd.Flags().StringVar(&username, "username", "", "username to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt_ttl)")
	return cmd
}
