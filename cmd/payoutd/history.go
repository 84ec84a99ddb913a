package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/payout-engine/generic"
)

func newHistoryCommand() *cobra.Command {
	var (
		coachID string
		months  int
		ref     string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a coach's monthly reward history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			at := a.clock.Now()
			if ref != "" {
				at, err = a.service.ParseMonth(generic.MonthKey(ref))
				if err != nil {
					return err
				}
			}
			if months <= 0 {
				months = cfg.Rewards.MonthsBack
			}

			history, err := a.service.History(cmd.Context(), generic.CoachID(coachID), months, at)
			if err != nil {
				return fmt.Errorf("history for %s: %w", coachID, err)
			}

			type row struct {
				Month       string        `json:"month"`
				Label       string        `json:"label"`
				Rate        string        `json:"rate"`
				LessonCount int           `json:"lesson_count"`
				TotalSales  generic.Money `json:"total_sales"`
				TotalReward generic.Money `json:"total_reward"`
			}
			out := make([]row, len(history))
			for i, m := range history {
				out[i] = row{
					Month:       string(m.MonthKey),
					Label:       m.Label,
					Rate:        m.Rate.String(),
					LessonCount: m.LessonCount,
					TotalSales:  m.TotalSales,
					TotalReward: m.TotalReward,
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&coachID, "coach", "", "coach ID")
	cmd.Flags().IntVar(&months, "months", 0, "months of history (default rewards.months_back)")
	cmd.Flags().StringVar(&ref, "ref", "", "reference month YYYY-MM (default current month)")
	_ = cmd.MarkFlagRequired("coach")

	return cmd
}
