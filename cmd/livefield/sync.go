package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield"
)

var (
	syncForce  bool
	syncCommit bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push workspace scripts to the server",
	Long: `Sync pushes every mapped script to its live field. Scripts that have not
changed since the last push are skipped unless --force is given. A failing
field does not stop the others.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(cmd, livefield.WithGit(syncCommit))

		fmt.Println("Syncing filestate with server")
		results, syncErr := ws.Sync(cmd.Context(), syncForce)

		pushed, failed := 0, 0
		for _, r := range results {
			switch {
			case r.Err != nil:
				failed++
				fmt.Printf("  failed    %s\n", r.Mapping.Name)
			case r.Pushed:
				pushed++
				fmt.Printf("  pushed    %s\n", r.Mapping.Name)
			default:
				fmt.Printf("  unchanged %s\n", r.Mapping.Name)
			}
		}
		fmt.Printf("%d pushed, %d unchanged, %d failed\n", pushed, len(results)-pushed-failed, failed)

		if syncErr != nil {
			fatal("Sync failed", syncErr)
		}

		if syncCommit && pushed > 0 {
			msg := fmt.Sprintf("sync %d live fields", pushed)
			if _, err := ws.Snapshot(cmd.Context(), msg); err != nil {
				fatal("Failed to commit workspace", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Push every script even when unchanged")
	syncCmd.Flags().BoolVar(&syncCommit, "commit", false, "Commit the workspace after a successful push")
}
