package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/frc4533-lincoln/robudst/cmd/gen"
)

var rootCmd = &cobra.Command{
	Use:   "robudst",
	Short: "Driver station protocol engine for a roboRIO",
}

func init() {
	rootCmd.AddCommand(StartCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
