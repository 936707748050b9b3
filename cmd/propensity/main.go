// cmd/propensity/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "propensity",
		Short:         "Score bank customers for product propensity",
		Long:          "propensity runs the product-propensity scoring pipeline against a fitted model bundle and inspects feature schemas and worker task types.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newSchemaCmd(), newVerifyCmd(), newTasksCmd())
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
