package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bill-analytics-service/internal/analytics"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

func (a *app) analyzeCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "analyze <name>[,<name>...] <files|dir>...",
		Short: "Compute one or more named analytics over bill files",
		Long: `Analyze loads the bill files once and computes each named analytic over the
filtered ledger. Run 'billctl catalog' for the available names.

Examples:
  billctl analyze merchants ./bills --direction expense
  billctl analyze monthly,yearly ./bills --year 2024 --month 6
  billctl analyze top ./bills --limit 5 --threshold 500`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parseNames(args[0])
			if err != nil {
				return err
			}
			q := flags.query(cmd.Flags())

			s, err := a.newSession(cmd, args[1:], false)
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

			for _, name := range names {
				result, err := s.engine.Run(name, table, q)
				if err != nil {
					return err
				}
				if err := gen.GenerateResultSafely(name, result, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			a.logger.WithFields(logger.Fields{
				"analytics": len(names),
				"rows":      table.Len(),
			}).Debug("Analysis completed")
			return nil
		},
	}

	flags.bindFilter(cmd.Flags())
	flags.bindParams(cmd.Flags())
	return cmd
}

// parseNames splits a comma separated list of analytic names and rejects
// unknown names before any file is loaded
func parseNames(arg string) ([]string, error) {
	var names []string
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := analytics.Lookup(name); !ok {
			return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeUnknownAnalytic,
				fmt.Sprintf("unknown analytic '%s'", name)).
				WithSuggestion("run 'billctl catalog' to list the available analytics").
				WithContext("name", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeUnknownAnalytic,
			"no analytic name given").
			WithSuggestion("run 'billctl catalog' to list the available analytics")
	}
	return names, nil
}
