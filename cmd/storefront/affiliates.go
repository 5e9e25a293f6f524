package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/gateway/sanity"
	"storefront/internal/logging"
	"storefront/internal/service/affiliate"
)

func newAffiliatesCmd(rt *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "affiliates",
		Short: "Manage partner program records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset-link <slug>",
		Short: "Issue a new dashboard link for an affiliate",
		Long: `Rotates the affiliate's dashboard token and prints the new link.
Links issued earlier stop working.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cms := sanity.New(rt.cfg.Sanity, logging.Component(rt.logger, "sanity"))
			svc := affiliate.New(cms, nil, nil, rt.cfg.SiteURL, rt.cfg.Affiliate.DefaultCommissionRate,
				logging.Component(rt.logger, "affiliate"))

			link, err := svc.ResetDashboardLink(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	})
	return cmd
}
