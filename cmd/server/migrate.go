package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			// openApp migrates as part of connecting.
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			if a.pool == nil {
				a.log.Warn().Msg("STORE=memory, nothing to migrate")
			}
			return nil
		},
	}
}
