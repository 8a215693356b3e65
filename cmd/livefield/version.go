package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield"
	"github.com/aretw0/livefield/pkg/globalsearch"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of livefield",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("livefield version %s (tested up to GlobalSearch %s)\n", livefield.Version, globalsearch.MaxTestedVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = livefield.Version
}
