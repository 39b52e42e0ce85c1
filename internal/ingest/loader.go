// Package ingest turns a session's raw bill files into one canonical table.
//
// The Loader runs detection and normalization for every file, isolating
// per-file failures: a file that cannot be decoded, has no header or holds a
// malformed amount is logged and skipped while the rest of the session loads.
// The surviving frames are merged, ordered by time and validated. Only schema
// failures and an empty result abort the load.
//
// Example usage:
//
//	loader, err := ingest.NewLoader(ingest.DefaultConfig(), nil)
//	files, err := ingest.NewDirFileSet(dir).Files()
//	table, report, err := loader.Load(files)
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/parsers"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// Config holds configuration options for the loader
type Config struct {
	Parsers *parsers.Config

	// MaxConcurrentFiles bounds how many files are normalized at once.
	// Results are always merged in input order.
	MaxConcurrentFiles int

	// OnProgress is called after each file is processed
	OnProgress logger.ProgressFunc
}

// DefaultConfig returns a default configuration for the loader
func DefaultConfig() *Config {
	return &Config{
		Parsers:            parsers.DefaultConfig(),
		MaxConcurrentFiles: 4,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Parsers == nil {
		return fmt.Errorf("parser configuration is required")
	}
	if err := c.Parsers.Validate(); err != nil {
		return fmt.Errorf("invalid parser configuration: %w", err)
	}
	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}
	return nil
}

// FileResult describes what happened to one file of the set
type FileResult struct {
	File        string              `json:"file"`
	Platform    models.Source       `json:"platform"`
	Encoding    string              `json:"encoding,omitempty"`
	Rows        int                 `json:"rows"`
	Refunds     int                 `json:"refunds"`
	SkippedRows int                 `json:"skipped_rows"`
	Skipped     bool                `json:"skipped"`
	ErrorCode   apperrors.ErrorCode `json:"error_code,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// LoadReport summarizes one ingestion pass
type LoadReport struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Files     []FileResult  `json:"files"`
	TotalRows int           `json:"total_rows"`
	Refunds   int           `json:"refunds"`
	Skipped   int           `json:"skipped_files"`

	skips []*apperrors.AppError
}

// SkipSummary aggregates the errors of skipped files, or nil when none were skipped
func (r *LoadReport) SkipSummary() *apperrors.ErrorSummary {
	if len(r.skips) == 0 {
		return nil
	}
	return apperrors.NewErrorSummary(r.skips)
}

// Loader runs the ingestion pipeline over a session file set.
// A Loader holds no per-session state and is safe for concurrent use.
type Loader struct {
	config   *Config
	detector *parsers.Detector
	logger   logger.Logger
}

// NewLoader creates a new Loader
func NewLoader(config *Config, log logger.Logger) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError("ingest", config.MaxConcurrentFiles, err).
			WithSuggestion("check the profile and loader settings")
	}

	return &Loader{
		config:   config,
		detector: parsers.NewDetector(config.Parsers),
		logger:   logger.OrGlobal(log, "loader"),
	}, nil
}

// fileOutcome is the private per-file result collected by workers
type fileOutcome struct {
	result  FileResult
	frame   *models.Frame
	skipErr error
	fatal   error
}

// Load normalizes every file and merges the results into one canonical table.
//
// Per-file errors skip the file and are recorded in the report. The load
// fails only with SchemaValidationError, NoDataError or an unexpected error.
func (l *Loader) Load(files []string) (*models.Table, *LoadReport, error) {
	report := &LoadReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Files:     make([]FileResult, 0, len(files)),
	}
	log := l.logger.WithField("run_id", report.RunID)

	log.WithField("files", len(files)).Info("Starting bill ingestion")

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "load_bills",
		Total:     len(files),
		Logger:    log,
		OnStep:    l.config.OnProgress,
	})

	outcomes := make([]fileOutcome, len(files))
	semaphore := make(chan struct{}, l.config.MaxConcurrentFiles)
	var wg sync.WaitGroup

	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[i] = l.loadFile(log, path)
			tracker.Step(filepath.Base(path))
		}(i, path)
	}
	wg.Wait()
	tracker.Complete()

	frames := make([]*models.Frame, 0, len(files))
	for _, out := range outcomes {
		if out.fatal != nil {
			return nil, report, out.fatal
		}
		report.Files = append(report.Files, out.result)
		if out.result.Skipped {
			report.Skipped++
			if appErr, ok := apperrors.As(out.skipErr); ok {
				report.skips = append(report.skips, appErr)
			}
			continue
		}
		frames = append(frames, out.frame)
	}

	table, err := Merge(frames)
	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"files":   len(files),
			"skipped": report.Skipped,
		}).Error("Bill ingestion failed")
		return nil, report, err
	}

	report.TotalRows = table.Len()
	for _, f := range report.Files {
		report.Refunds += f.Refunds
	}

	log.WithFields(logger.Fields{
		"files":    len(files),
		"skipped":  report.Skipped,
		"rows":     report.TotalRows,
		"refunds":  report.Refunds,
		"duration": report.Duration.String(),
	}).Info("Bill ingestion completed")

	return table, report, nil
}

// LoadFileSet enumerates fs and loads its files
func (l *Loader) LoadFileSet(fs FileSet) (*models.Table, *LoadReport, error) {
	files, err := fs.Files()
	if err != nil {
		return nil, nil, err
	}
	return l.Load(files)
}

// loadFile detects and normalizes one file. Errors that only concern this
// file mark it skipped; anything else is returned as fatal.
func (l *Loader) loadFile(log logger.Logger, path string) fileOutcome {
	out := fileOutcome{result: FileResult{File: path, Platform: models.SourceUnknown}}

	source, err := l.detector.Detect(path)
	if err != nil {
		return l.skip(log, out, err)
	}
	out.result.Platform = source
	if source == models.SourceUnknown {
		return l.skip(log, out, apperrors.FileError(apperrors.CodeUnsupportedFormat, path, nil))
	}

	normalizer, err := parsers.ForSource(source, l.config.Parsers, l.logger)
	if err != nil {
		out.fatal = err
		return out
	}

	frame, stats, err := normalizer.Normalize(path)
	if err != nil {
		if errors.Is(err, parsers.ErrNotABill) {
			return l.skip(log, out, apperrors.Wrap(err, apperrors.CategoryFile,
				apperrors.CodeUnsupportedFormat, err.Error()).WithContext("file", path))
		}
		if apperrors.IsFileScoped(err) {
			return l.skip(log, out, err)
		}
		out.fatal = apperrors.WrapIfNeeded(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
			fmt.Sprintf("failed to normalize %s", path))
		return out
	}

	out.frame = frame
	out.result.Encoding = stats.Encoding
	out.result.Rows = stats.Normalized
	out.result.Refunds = stats.Refunds
	out.result.SkippedRows = stats.SkippedRows
	return out
}

func (l *Loader) skip(log logger.Logger, out fileOutcome, err error) fileOutcome {
	out.result.Skipped = true
	out.result.Error = err.Error()
	if appErr, ok := apperrors.As(err); ok {
		out.result.ErrorCode = appErr.Code
	}
	out.skipErr = err

	log.WithError(err).WithFields(logger.Fields{
		"file":       out.result.File,
		"platform":   out.result.Platform,
		"error_code": out.result.ErrorCode,
	}).Warn("Skipping bill file")
	return out
}
