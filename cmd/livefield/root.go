package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/livefield"
	"github.com/aretw0/livefield/pkg/workspace"
)

var (
	verbose    bool
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livefield",
	Short: "Development workspace tool for GlobalSearch Live Fields",
	Long: `livefield imports GlobalSearch Live Field scripts into local files,
keeps them mapped to their server fields and pushes your edits back.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", workspace.DefaultConfigFile, "Path to config file")
}

// resolveConfig returns the --config path. When the flag was left at its
// default, parent directories are searched so commands work from inside the
// script directory.
func resolveConfig(cmd *cobra.Command) string {
	if cmd.Flags().Changed("config") {
		return configPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		return configPath
	}
	if found, err := livefield.FindConfig(cwd, configPath); err == nil {
		return found
	}
	return configPath
}

// openWorkspace opens the workspace or exits.
func openWorkspace(cmd *cobra.Command, opts ...livefield.Option) *livefield.Workspace {
	opts = append([]livefield.Option{livefield.WithLogger(slog.Default())}, opts...)
	ws, err := livefield.Open(cmd.Context(), resolveConfig(cmd), opts...)
	if err != nil {
		fatal("Failed to open workspace", err)
	}
	return ws
}
