package cmd

import (
	"github.com/spf13/cobra"
)

func (a *app) transactionsCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "transactions <files|dir>...",
		Short: "List the ledger newest first, one page at a time",
		Long: `Transactions lists the filtered ledger sorted by time, newest first.
Refunds stay in the listing with negative amounts.

Examples:
  billctl transactions ./bills -f console
  billctl transactions ./bills --category 餐饮 --page 2 --per-page 20`,
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
			result, err := s.engine.Run("transactions", table, flags.query(cmd.Flags()))
			if err != nil {
				return err
			}
			gen, err := a.reportGenerator()
			if err != nil {
				return err
			}
			return gen.GenerateResultSafely("transactions", result, cmd.OutOrStdout())
		},
	}

	flags.bindFilter(cmd.Flags())
	flags.bindPaging(cmd.Flags())
	return cmd
}
