package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/streamgate/streamgate/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of connectorctl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("connectorctl %s\n", version.Version)
	},
}
