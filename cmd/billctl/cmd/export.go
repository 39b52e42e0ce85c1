package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <files|dir>...",
		Short: "Write the canonical ledger as CSV",
		Long: `Export writes every row of the merged ledger, refunds included, as CSV in
chronological order. Without --output the CSV goes to stdout.

When the output file cannot be created the ledger is written to a backup file
in the temporary directory and its path is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd, args, false)
			if err != nil {
				return err
			}
			table, err := s.table()
			if err != nil {
				return err
			}
			gen, err := a.reportGenerator()
			if err != nil {
				return err
			}

			if output == "" {
				return gen.ExportLedger(table, cmd.OutOrStdout())
			}
			written, err := gen.ExportLedgerToFile(table, output)
			if err != nil {
				return err
			}
			if written != output {
				fmt.Fprintf(cmd.ErrOrStderr(), "Could not write %s; ledger saved to %s\n", output, written)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Ledger written to %s (%d rows)\n", written, table.Len())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")
	return cmd
}
