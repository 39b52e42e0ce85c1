package cmd

import (
	"github.com/spf13/cobra"
)

func (a *app) loadCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "load <files|dir>...",
		Short: "Normalize bill exports and report what was loaded",
		Long: `Load detects the platform and encoding of every file, normalizes the rows
into the canonical ledger and reports per-file results.

Files that cannot be read or recognized are skipped and listed in the report;
the load fails only when no file yields data or the files disagree on columns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd, args, progress)
			if err != nil {
				return err
			}
			gen, err := a.reportGenerator()
			if err != nil {
				return err
			}

			_, loadErr := s.table()
			if s.report != nil {
				if err := gen.GenerateLoadReportSafely(s.report, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return loadErr
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar while files are parsed")
	return cmd
}
