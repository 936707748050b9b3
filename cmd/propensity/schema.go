// cmd/propensity/schema.go
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"propensity-scoring/internal/propensity/features"

	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schema [version]",
		Short: "Print a feature schema",
		Long:  "Prints the ordered columns and the scaled numeric subset of a feature schema. Without a version every registered schema is listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions := features.Versions()
			if len(args) == 1 {
				versions = args[:1]
			}

			schemas := make([]*features.Schema, 0, len(versions))
			for _, v := range versions {
				s, err := features.Lookup(v)
				if err != nil {
					return err
				}
				schemas = append(schemas, s)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(schemas)
			}
			for i, s := range schemas {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s (%d columns)\n", s.Version, len(s.Columns))
				for j, c := range s.Columns {
					fmt.Fprintf(w, "  %2d  %s\n", j, c)
				}
				fmt.Fprintf(w, "  numeric: %s\n", strings.Join(s.Numeric, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
