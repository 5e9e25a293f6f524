package main

import (
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/gateway/sanity"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func newSeedCmd(rt *cliEnv) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the product catalog into the CMS",
		Long: `Upserts product documents into the CMS dataset. Without --file the
built-in catalog is used, which covers every quiz recommendation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data []byte
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = b
			}

			cms := sanity.New(rt.cfg.Sanity, logging.Component(rt.logger, "sanity"))
			n, err := seed.Apply(cmd.Context(), cms, data)
			if err != nil {
				return err
			}
			rt.logger.Info().Int("products", n).Msg("catalog seeded")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to seed instead of the built-in one")
	return cmd
}
