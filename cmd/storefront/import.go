package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/gateway/sanity"
	"storefront/internal/importer"
	"storefront/internal/logging"
)

func newImportCmd(rt *cliEnv) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import product copy from a CSV export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			cms := sanity.New(rt.cfg.Sanity, logging.Component(rt.logger, "sanity"))
			start := time.Now()
			count, err := importer.NewCSVImporter(f, cms).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("import failed after %d products: %w", count, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the product CSV")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
