// Package main is the entry point for the Portfolio Tree application.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logStdout  bool
)

var rootCmd = &cobra.Command{
	Use:   "portfoliotree",
	Short: "Portfolio Tree keeps a personal portfolio as an ordered tree of content nodes",
	Long: `Portfolio Tree stores portfolios of categories, projects, skills and experience
as a tree of content nodes. It serves them over an HTTP JSON API, offers an
interactive shell and moves portfolios in and out of JSON, XML and YAML files.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file, .json or .toml (default ./data/config.json)")
	rootCmd.PersistentFlags().BoolVar(&logStdout, "log-stdout", false, "write logs to stderr instead of the log folder")

	rootCmd.AddCommand(serveCmd, shellCmd, exportCmd, importCmd, userCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
