package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aretw0/livefield/pkg/workspace"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which scripts changed locally or on the server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(cmd)

		statuses, err := ws.Status(cmd.Context())
		if err != nil {
			fatal("Failed to read status", err)
		}

		if statusJSON {
			out := struct {
				Workspace any                     `json:"workspace"`
				Fields    []workspace.FieldStatus `json:"fields"`
			}{
				Workspace: ws.State(),
				Fields:    statuses,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				fatal("Failed to encode status", err)
			}
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLOCAL\tREMOTE\tSYNCED\tFILE")
		for _, s := range statuses {
			synced := "never"
			if s.SyncedAt != nil {
				synced = humanize.Time(*s.SyncedAt)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.Mapping.ID, s.Mapping.Name, s.Local, s.Remote, synced, s.Mapping.Filename)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print workspace state and field status as JSON")
}
