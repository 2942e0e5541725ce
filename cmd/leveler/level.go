package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChatSift/Social/internal/application/query"
	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/postgres"
)

func newLevelCommand() *cobra.Command {
	var q query.GetLevelQuery

	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show a member's level, progress and rewards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openPostgres(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer conn.Close()

			handler := query.NewGetLevelHandler(
				postgres.NewSettingsRepository(conn),
				postgres.NewProgressRepository(conn),
				postgres.NewRewardRepository(conn),
			)
			dto, err := handler.Handle(cmd.Context(), q)
			if err != nil {
				return err
			}
			printLevel(cmd, dto)
			return nil
		},
	}

	cmd.Flags().StringVar(&q.GuildID, "guild", "", "guild id")
	cmd.Flags().StringVar(&q.UserID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("guild")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printLevel(cmd *cobra.Command, dto *query.LevelDTO) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Level %d (%d xp total)\n", dto.Level, dto.XP)
	fmt.Fprintf(out, "Progress: %d/%d xp (%d to go)\n", dto.Progress, dto.RequiredForNext, dto.Remaining())
	fmt.Fprintf(out, "Rewards: %s\n", formatRewards(dto.CurrentRewards))
	fmt.Fprintf(out, "Next level rewards: %s\n", formatRewards(dto.NextRewards))
}

func formatRewards(rewards []leveling.Reward) string {
	if len(rewards) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(rewards))
	for _, r := range rewards {
		label := r.RoleID
		if r.Clean {
			label += " (removed at the next level)"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}
