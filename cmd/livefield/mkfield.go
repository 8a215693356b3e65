package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mkfieldCmd represents the mkfield command
var mkfieldCmd = &cobra.Command{
	Use:   "mkfield [name] [script]",
	Short: "Create a live field from a script file",
	Long: `Mkfield creates a character live field named [name] on the server with
the contents of [script] and adds it to the mapping. Scripts outside the
script directory are copied into it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name, script := args[0], args[1]
		ws := openWorkspace(cmd)

		fmt.Printf("Creating Live Field %s. Script path: %s\n", name, script)
		m, err := ws.MakeField(cmd.Context(), name, script)
		if err != nil {
			fatal("Failed to create live field", err)
		}
		fmt.Printf("Live field created: %d -> %s\n", m.ID, m.Filename)
	},
}

func init() {
	rootCmd.AddCommand(mkfieldCmd)
}
