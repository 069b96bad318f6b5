package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sandchat",
		Short: "Sandchat - sandboxed LLM chat backend",
		Long: `Sandchat is the backend of a multi-user chat application where every
conversation is served by a long-lived agent running in its own
sandbox container.`,
	}

	rootCmd.AddCommand(
		serveCmd(),
		createUserCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("sandchat " + version)
		},
	}
}
