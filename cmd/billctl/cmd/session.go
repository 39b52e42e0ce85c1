package cmd

import (
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"bill-analytics-service/cmd/billctl/config"
	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/ingest"
	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/reporter"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// session is one set of bill files with the loader and engine built for it.
// The canonical table is loaded on first use and then served from the cache.
type session struct {
	app    *app
	id     string
	files  []string
	loader *ingest.Loader
	engine *analytics.Engine
	report *ingest.LoadReport
}

func (a *app) newSession(cmd *cobra.Command, args []string, progress bool) (*session, error) {
	files, err := ingest.ExpandPaths(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.NoDataError(0).
			WithSuggestion("pass bill files or a directory that contains .csv or .xlsx exports")
	}

	parserConfig, err := a.config.ParserConfig()
	if err != nil {
		return nil, err
	}

	var onProgress logger.ProgressFunc
	if progress {
		onProgress = newProgressBar(cmd, len(files))
	}

	loader, err := ingest.NewLoader(a.config.LoaderConfig(parserConfig, onProgress), a.logger)
	if err != nil {
		return nil, err
	}
	engine, err := analytics.NewEngine(config.EngineConfig(parserConfig.Profile), a.logger)
	if err != nil {
		return nil, err
	}

	return &session{
		app:    a,
		id:     strings.Join(files, "\n"),
		files:  files,
		loader: loader,
		engine: engine,
	}, nil
}

// table returns the canonical table of the session's files and keeps the
// report of the load that built it
func (s *session) table() (*models.Table, error) {
	snapshot, hit, err := s.app.cache.GetOrCompute(s.id, func() (*ingest.Snapshot, error) {
		table, report, err := s.loader.Load(s.files)
		s.report = report
		if err != nil {
			return nil, err
		}
		return &ingest.Snapshot{Table: table, Report: report}, nil
	})
	if err != nil {
		return nil, err
	}
	s.report = snapshot.Report
	if hit {
		s.app.logger.WithField("rows", snapshot.Table.Len()).Debug("Using cached bill table")
	}
	return snapshot.Table, nil
}

func (a *app) reportGenerator() (*reporter.SafeReportGenerator, error) {
	return reporter.NewSafeReportGenerator(a.config.ReportConfig(), a.logger)
}

// newProgressBar draws file progress on stderr
func newProgressBar(cmd *cobra.Command, total int) logger.ProgressFunc {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Loading bills[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = cmd.ErrOrStderr().Write([]byte("\n"))
		}),
	)
	return func(_, _ int, item string) {
		bar.Describe("[cyan]" + item + "[reset]")
		_ = bar.Add(1)
	}
}
