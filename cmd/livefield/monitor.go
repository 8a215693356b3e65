package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield/pkg/core"
	"github.com/aretw0/livefield/pkg/workspace"
)

var monitorCatchUp bool

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch scripts and push them when saved",
	Long: `Monitor watches the script directory and pushes a script to its live
field once it has been quiet for the debounce period. Edits to the config
file are picked up without a restart. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(cmd)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Starting filesystem monitoring")
		err := ws.Monitor(ctx,
			workspace.WithCatchUp(monitorCatchUp),
			workspace.WithPushHook(func(m core.Mapping, err error) {
				if err == nil {
					fmt.Printf("Updated %s\n", m.Name)
				}
			}),
		)
		if err != nil {
			fatal("Monitor failed", err)
		}
		fmt.Println("Monitor stopped.")
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorCatchUp, "catch-up", true, "Push scripts edited while the monitor was not running")
}
