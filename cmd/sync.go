package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"carnumbers/internal/jobs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSyncCmd() *cobra.Command {
	var (
		guildID int64
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one roster reconciliation pass and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (guildID == 0) == !all {
				return errors.New("pass exactly one of --guild or --all")
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if all {
				report, err := a.sweeper.SweepAll(cmd.Context())
				if err != nil {
					return err
				}
				if err := enc.Encode(report); err != nil {
					return err
				}
				if report.PartialFailure() {
					return fmt.Errorf("%d of %d guilds failed", report.Failed, len(report.Results))
				}
				return nil
			}

			result, err := a.rosterSync.SyncTenant(cmd.Context(), guildID)
			if err != nil {
				return err
			}
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Status != jobs.PassSucceeded {
				logger.Warn("sync pass did not succeed", zap.Int64("guild_id", guildID), zap.String("reason", result.Reason))
				return fmt.Errorf("guild %d: pass %s: %s", guildID, result.Status, result.Reason)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&guildID, "guild", 0, "guild to sync")
	cmd.Flags().BoolVar(&all, "all", false, "sync every configured guild")
	return cmd
}
