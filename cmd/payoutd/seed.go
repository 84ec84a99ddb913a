package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	var scenario string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the database and load a demo scenario",
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

			if err := a.handler.ApplyScenario(cmd.Context(), scenario); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded scenario %s into %s\n", scenario, cfg.Database.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "scenario ID (see GET /api/scenarios)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
