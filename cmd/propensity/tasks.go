// cmd/propensity/tasks.go
package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"propensity-scoring/pkg/registry"

	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	var (
		registryPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "tasks [taskType]",
		Short: "List the Zeebe task types served by the worker manager",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *registry.ActivityRegistry
				err error
			)
			if registryPath != "" {
				reg, err = registry.LoadRegistry(registryPath)
			} else {
				reg, err = registry.Default()
			}
			if err != nil {
				return err
			}

			activities := reg.Activities
			if len(args) == 1 {
				a, ok := reg.Lookup(args[0])
				if !ok {
					return fmt.Errorf("unknown task type %q", args[0])
				}
				activities = []registry.Activity{a}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(activities)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK TYPE\tTIMEOUT\tRETRIES\tERROR CODES")
			for _, a := range activities {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.TaskType, a.Timeout, a.Retries, strings.Join(a.ErrorCodes, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", "", "Read the registry from a JSON file instead of the built-in one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
