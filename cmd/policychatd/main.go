package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andino-labs/policychat/internal/cli"
	"github.com/andino-labs/policychat/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "policychatd",
		Short: "Policychat daemon",
		Long:  "Policychat daemon for running the policy assistant API server and managing its database",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
