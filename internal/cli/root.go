// Package cli implements the deskwise command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/deskwise/deskwise/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"     _           _               _\n" +
		"  __| | ___  ___| | ____      __(_)___  ___\n" +
		" / _` |/ _ \\/ __| |/ /\\ \\ /\\ / /| / __|/ _ \\\n" +
		"| (_| |  __/\\__ \\   <  \\ V  V / | \\__ \\  __/\n" +
		" \\__,_|\\___||___/_|\\_\\  \\_/\\_/  |_|___/\\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "deskwise",
	Short: "deskwise - AI ticket intelligence pipeline",
	Long:  color.CyanString(logo) + "\nTicket analysis, auto-response, escalation and knowledge learning for helpdesk teams.",
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
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(learnCmd)
}
