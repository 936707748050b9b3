// cmd/propensity/verify.go
package main

import (
	"fmt"
	"strings"

	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/artifacts"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var flags bundleFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Load a model bundle and check its schema pairing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundlePath, opts, _, err := flags.resolve()
			if err != nil {
				return err
			}
			bundle, err := artifacts.LoadBundle(bundlePath, opts...)
			if err != nil {
				return err
			}

			products := bundle.Bank.Products()
			names := make([]string, len(products))
			for i, p := range products {
				names[i] = string(p)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "bundle:    %s\n", bundle.Source)
			fmt.Fprintf(w, "schema:    %s (%d columns)\n", bundle.Schema.Version, len(bundle.Schema.Columns))
			fmt.Fprintf(w, "packaging: %s\n", bundle.Packaging)
			fmt.Fprintf(w, "bucketer:  %s\n", bundle.Bucketer.Name())
			fmt.Fprintf(w, "products:  %s\n", strings.Join(names, ", "))
			if len(products) < len(models.CanonicalProducts) {
				fmt.Fprintf(w, "warning:   %d of %d products covered\n", len(products), len(models.CanonicalProducts))
			}
			fmt.Fprintln(w, "OK")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
