package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/reporter"
)

var catalogHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

func (a *app) catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the available analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := analytics.Catalog()
			if a.config.Format != string(reporter.FormatConsole) {
				gen, err := a.reportGenerator()
				if err != nil {
					return err
				}
				return gen.GenerateResultSafely("catalog", entries, cmd.OutOrStdout())
			}

			header := func(s string) string { return s }
			if !a.config.NoColor {
				header = func(s string) string { return catalogHeaderStyle.Render(s) }
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\n", header("NAME"), header("DESCRIPTION"))
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\n", entry.Name, entry.Description)
			}
			return w.Flush()
		},
	}
}
