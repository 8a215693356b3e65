package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield"
)

var initGit bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Import live fields from the GlobalSearch server",
	Long: `Init downloads every live field script into the configured directory,
rebuilds the mapping in the config file and writes global.d.ts typings for
the $$inject object. With --git the imported scripts are committed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(cmd, livefield.WithGit(initGit))

		fmt.Println("Creating development directory for Live Fields")
		mapping, err := ws.Init(cmd.Context())
		if err != nil {
			fatal("Failed to import live fields", err)
		}
		fmt.Printf("Imported %d live fields into %s\n", len(mapping), ws.Config().Rel(ws.Config().ScriptDir()))

		if !initGit {
			return
		}
		committed, err := ws.Snapshot(cmd.Context(), "import live fields")
		if err != nil {
			fatal("Failed to commit workspace", err)
		}
		if committed {
			fmt.Println("Committed imported scripts.")
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initGit, "git", false, "Track the workspace in git and commit the import")
}
