package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield/pkg/inject"
	"github.com/aretw0/livefield/pkg/workspace"
)

var typesStdout bool

// typesCmd represents the types command
var typesCmd = &cobra.Command{
	Use:   "types [dir]",
	Short: "Write global.d.ts typings for the $$inject object",
	Long: `Types writes the ambient TypeScript declaration of the $$inject object
to [dir]/global.d.ts. Without [dir] the script directory of the workspace is
used, or the current directory when there is no workspace.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if typesStdout {
			fmt.Print(inject.Declaration())
			return
		}

		dir := "."
		if len(args) == 1 {
			dir = args[0]
		} else if cfg, err := workspace.LoadConfig(resolveConfig(cmd)); err == nil {
			dir = cfg.ScriptDir()
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			fatal("Failed to create directory", err)
		}
		path, err := inject.WriteDeclaration(dir)
		if err != nil {
			fatal("Failed to write typings", err)
		}
		fmt.Println("Wrote", path)
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
	typesCmd.Flags().BoolVar(&typesStdout, "stdout", false, "Print the declaration instead of writing it")
}
