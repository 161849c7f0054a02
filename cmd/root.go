package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridseq/debug"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "gridseq",
	Short: "grid-based song editor",
	Long:  "gridseq edits songs on a pitch/beat grid and keeps an external compute service in sync for playback, persistence and AI-assisted edits.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugFlag {
			if err := debug.Enable(); err != nil {
				fmt.Fprintf(os.Stderr, "debug logging unavailable: %v\n", err)
			}
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log debug output to the config dir")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
