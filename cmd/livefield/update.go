package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update [id] [script]",
	Short: "Push one script to one live field",
	Long: `Update replaces the script of live field [id] with the contents of
[script]. The mapping entry for [id] supplies the request method, URL,
headers, JSON path and body.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("Invalid field id", err)
		}
		script := args[1]
		ws := openWorkspace(cmd)

		fmt.Printf("Updating Live Field %d. Script path: %s\n", id, script)
		if err := ws.Update(cmd.Context(), id, script); err != nil {
			fatal("Failed to update live field", err)
		}
		fmt.Println("Live field updated.")
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
