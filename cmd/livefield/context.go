package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield/pkg/inject"
	"github.com/aretw0/livefield/pkg/workspace"
)

var (
	ctxToken   string
	ctxOffline bool
	ctxFieldID int
	ctxDoc     inject.Document
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Preview the $$inject object a script would receive",
	Long: `Context prints a development stand-in for the $$inject object as JSON.
The auth token is requested from the server unless --token or --offline is
given. With --field the mapping of that field is used as properties.config.
The preview is built locally; no script is executed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := []inject.DevOption{
			inject.WithLogger(slog.Default()),
			inject.WithDocument(ctxDoc),
		}

		if ctxFieldID != 0 {
			cfg, err := workspace.LoadConfig(resolveConfig(cmd))
			if err != nil {
				fatal("Failed to load config", err)
			}
			m, ok := cfg.MappingByID(ctxFieldID)
			if !ok {
				fatal("Unknown field", fmt.Errorf("no mapping for field %d", ctxFieldID))
			}
			opts = append(opts, inject.WithConfig(m))
			if ctxDoc.DatabaseID == 0 {
				ctxDoc.DatabaseID = cfg.DatabaseID
				opts = append(opts, inject.WithDocument(ctxDoc))
			}
		}

		token := ctxToken
		if token == "" && !ctxOffline {
			ws := openWorkspace(cmd)
			t, err := ws.Store().Token(cmd.Context())
			if err != nil {
				fatal("Failed to request auth token", err)
			}
			token = t
		}
		opts = append(opts, inject.WithAuthToken(token))

		dev := inject.NewDevContext(opts...)
		if err := dev.Validate(); err != nil {
			fatal("Incomplete context", err)
		}

		data, err := json.MarshalIndent(dev.Context, "", "  ")
		if err != nil {
			fatal("Failed to encode context", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVar(&ctxToken, "token", "", "Auth token to inject instead of requesting one")
	contextCmd.Flags().BoolVar(&ctxOffline, "offline", false, "Do not contact the server")
	contextCmd.Flags().IntVar(&ctxFieldID, "field", 0, "Use the mapping of this field as properties.config")
	contextCmd.Flags().IntVar(&ctxDoc.ID, "doc-id", 0, "properties.document.id")
	contextCmd.Flags().StringVar(&ctxDoc.Hash, "doc-hash", "", "properties.document.hash")
	contextCmd.Flags().IntVar(&ctxDoc.DatabaseID, "db", 0, "properties.document.databaseId (defaults to the config dbid)")
	contextCmd.Flags().IntVar(&ctxDoc.ArchiveID, "archive", 0, "properties.document.archiveId")
	contextCmd.Flags().StringVar(&ctxDoc.FileID, "file-id", "", "properties.document.fileId")
}
