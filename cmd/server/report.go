package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/kjannette/mtf-backend/internal/reports"
	"github.com/kjannette/mtf-backend/internal/service"
)

func newReportCmd() *cobra.Command {
	var owner, kind, period string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a summary, pnl, interest or tax report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := reports.ParseKind(kind)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()
			if owner == "" {
				owner = a.cfg.DefaultOwner
			}

			svc := service.New(a.store, service.Options{
				Defaults: a.defaultRates(),
				Location: a.cfg.Location(),
				Log:      a.log,
			})
			rep, err := svc.Report(cmd.Context(), owner, k, reports.Period(period))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (defaults to DEFAULT_OWNER)")
	cmd.Flags().StringVar(&kind, "kind", string(reports.KindSummary), "summary, pnl, interest or tax")
	cmd.Flags().StringVar(&period, "period", string(reports.AllTime), "reporting period, e.g. current_fy")
	return cmd
}
