package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"gridseq/config"
	"gridseq/debug"
	"gridseq/tui"
)

func init() {
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "open the grid editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit()
	},
}

func runEdit() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug logging unavailable: %v\n", err)
		}
	}

	m := tui.NewModel(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
