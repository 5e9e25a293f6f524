package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/db"
	"storefront/internal/gateway/sanity"
	"storefront/internal/logging"
	commissionrepo "storefront/internal/repository/commission"
	"storefront/internal/service/commission"
)

func newCommissionsCmd(rt *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commissions",
		Short: "Inspect and repair the commission ledger",
	}

	var limit int
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Credit ledger entries left unpaid by an interrupted delivery",
		Long: `Re-attempts every unpaid ledger entry whose claim has lapsed, adding the
stored amount to the affiliate's earnings and marking the entry paid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.Connect(cmd.Context(), rt.cfg.DBConnString)
			if err != nil {
				return err
			}
			defer pool.Close()

			cms := sanity.New(rt.cfg.Sanity, logging.Component(rt.logger, "sanity"))
			svc := commission.New(rt.cfg.Webhook.Secret, cms, commissionrepo.NewPostgres(pool),
				logging.Component(rt.logger, "commission"))

			n, err := svc.Reconcile(cmd.Context(), limit)
			fmt.Fprintf(cmd.OutOrStdout(), "%d credits settled\n", n)
			return err
		},
	}
	reconcile.Flags().IntVar(&limit, "limit", 100, "maximum entries to settle in one run")

	cmd.AddCommand(reconcile)
	return cmd
}
