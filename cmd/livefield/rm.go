package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var rmYes bool

// rmCmd represents the rm command
var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a live field (PERMANENT!)",
	Long: `Rm permanently deletes live field [id] on the server and drops it from
the mapping. The local script file is left in place. Requires --yes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("Invalid field id", err)
		}
		if !rmYes {
			fatal("Refusing to delete", errors.New("deletion is permanent, pass --yes to confirm"))
		}

		ws := openWorkspace(cmd)
		if err := ws.Remove(cmd.Context(), id); err != nil {
			fatal("Failed to delete live field", err)
		}
		fmt.Printf("Live field deleted: %d\n", id)
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Confirm permanent deletion")
}
