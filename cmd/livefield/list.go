package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aretw0/livefield/pkg/core"
)

var (
	listJSON bool
	listLong bool
)

// listCmd represents the ls command
var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List live fields on the server",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(cmd)

		fields, err := ws.List(cmd.Context())
		if err != nil {
			fatal("Failed to list live fields", err)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(fields); err != nil {
				fatal("Failed to encode fields", err)
			}
			return
		}

		cfg := ws.Config()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if listLong {
			fmt.Fprintln(w, "ID\tNAME\tMETHOD\tSCRIPT\tFILE")
		} else {
			fmt.Fprintln(w, "ID\tNAME")
		}
		for _, f := range fields {
			if !listLong {
				fmt.Fprintf(w, "%d\t%s\n", f.ID, f.Name)
				continue
			}
			file := "-"
			if m, ok := cfg.MappingByID(f.ID); ok {
				file = m.Filename
			}
			lf := liveFieldOf(f)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Name, lf.Method, humanize.Bytes(uint64(len(lf.Script))), file)
		}
		w.Flush()
	},
}

func liveFieldOf(f core.Field) core.LiveField {
	if f.ExtendedConfig.LiveField == nil {
		return core.LiveField{}
	}
	return *f.ExtendedConfig.LiveField
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print fields as JSON")
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "Show method, script size and local file")
}
