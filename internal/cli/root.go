// Package cli implements the groupscribe command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/groupscribe/groupscribe/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ____                       ____            _ _\n" +
		"  / ___|_ __ ___  _   _ _ __ / ___|  ___ _ __(_) |__   ___\n" +
		" | |  _| '__/ _ \\| | | | '_ \\\\___ \\ / __| '__| | '_ \\ / _ \\\n" +
		" | |_| | | | (_) | |_| | |_) |___) | (__| |  | | |_) |  __/\n" +
		"  \\____|_|  \\___/ \\__,_| .__/|____/ \\___|_|  |_|_.__/ \\___|\n" +
		"                       |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "groupscribe",
	Short: "groupscribe - WhatsApp group summarization bot",
	Long:  color.CyanString(logo) + "\nA per-tenant WhatsApp bot that follows group conversations and summarizes them on demand.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(statusCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
