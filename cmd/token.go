package main

import (
	"errors"
	"fmt"
	"time"

	"carnumbers/internal/services"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

type tokenConfig struct {
	Secret string        `env:"JWT_SECRET,required,notEmpty"`
	TTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

func newTokenCmd() *cobra.Command {
	var (
		userID  int64
		guildID int64
		admin   bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token for a guild member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 || guildID <= 0 {
				return errors.New("--user and --guild are required")
			}
			var cfg tokenConfig
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("load token config: %w", err)
			}
			tokens, err := services.NewTokenService(cfg.Secret, cfg.TTL)
			if err != nil {
				return err
			}
			signed, expires, err := tokens.Issue(userID, guildID, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Discord user id")
	cmd.Flags().Int64Var(&guildID, "guild", 0, "Discord guild id")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant guild admin rights")
	return cmd
}
