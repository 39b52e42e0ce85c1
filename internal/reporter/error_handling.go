package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bill-analytics-service/internal/ingest"
	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	generator, err := NewReportGenerator(config)
	if err != nil {
		var format interface{}
		if config != nil {
			format = config.Format
		}
		return nil, apperrors.ConfigurationError("report", format, err).
			WithSuggestion("use one of console, json or csv")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          logger.OrGlobal(log, "reporter"),
	}, nil
}

// GenerateLoadReportSafely writes the load report, logging the outcome
func (srg *SafeReportGenerator) GenerateLoadReportSafely(report *ingest.LoadReport, writer io.Writer) error {
	if writer == nil {
		return srg.wrapGenerationError(fmt.Errorf("output writer cannot be nil"))
	}
	if err := srg.GenerateLoadReport(report, writer); err != nil {
		srg.logger.WithError(err).Error("Load report generation failed")
		return srg.wrapGenerationError(err)
	}
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Load report written")
	return nil
}

// GenerateResultSafely writes an analytic result. A result that has no form
// in the requested format is written to the console format instead.
func (srg *SafeReportGenerator) GenerateResultSafely(name string, result interface{}, writer io.Writer) error {
	if writer == nil {
		return srg.wrapGenerationError(fmt.Errorf("output writer cannot be nil"))
	}

	log := srg.logger.WithFields(logger.Fields{
		"analytic": name,
		"format":   srg.config.Format,
		"output":   getWriterDescription(writer),
	})

	err := srg.GenerateResult(name, result, writer)
	if err == nil {
		log.Debug("Result written")
		return nil
	}
	if !srg.shouldAttemptFormatFallback(err) {
		log.WithError(err).Error("Result generation failed")
		return srg.wrapGenerationError(err)
	}

	log.WithError(err).Warn("Requested format failed, attempting console fallback")
	return srg.generateWithFormatFallback(name, result, writer, err)
}

// shouldAttemptFormatFallback reports whether the result lacks a form in
// the requested format
func (srg *SafeReportGenerator) shouldAttemptFormatFallback(err error) bool {
	return srg.config.Format != FormatConsole && apperrors.IsCode(err, apperrors.CodeInvalidQuery)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(name string, result interface{}, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	fallbackConfig.UseColors = false

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: %v; showing console output\n\n", originalErr)
	if err := fallbackGenerator.GenerateResult(name, result, writer); err != nil {
		return apperrors.InternalError("report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err))
	}

	srg.logger.WithField("fallback_format", FormatConsole).Info("Result generated using format fallback")
	return nil
}

// ExportLedgerToFile writes the ledger CSV to path. When path cannot be
// created a backup file in the temporary directory is used instead. It
// returns the path actually written.
func (srg *SafeReportGenerator) ExportLedgerToFile(table *models.Table, path string) (string, error) {
	file, err := os.Create(path)
	if err != nil {
		if !isFileError(err) {
			return "", apperrors.FileError(apperrors.CodeFileRead, path, err)
		}
		backup := generateBackupPath(path)
		srg.logger.WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   backup,
		}).WithError(err).Warn("Cannot create export file, attempting output fallback")

		file, err = os.Create(backup)
		if err != nil {
			return "", apperrors.FileError(apperrors.CodeFileRead, path, err).
				WithSuggestion("check that the output directory exists and is writable")
		}
		path = backup
	}

	if err := srg.writeLedgerFile(table, file, path); err != nil {
		return "", err
	}

	srg.logger.WithFields(logger.Fields{
		"file": path,
		"rows": table.Len(),
	}).Info("Ledger exported")
	return path, nil
}

// writeLedgerFile exports table into file and closes it. A failed close
// fails the export.
func (srg *SafeReportGenerator) writeLedgerFile(table *models.Table, file io.WriteCloser, path string) (err error) {
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = apperrors.FileError(apperrors.CodeFileRead, path, cerr).
				WithSuggestion("the export may be incomplete; check free disk space and retry")
		}
	}()

	if err := srg.ExportLedger(table, file); err != nil {
		return srg.wrapGenerationError(err)
	}
	return nil
}

// isFileError checks if the error is file-related
func isFileError(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || isSpaceError(err)
}

// generateBackupPath places name_backup.ext in the temporary directory
func generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s_backup%s", name, ext))
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	return apperrors.InternalError("report_generation", err).
		WithSuggestion("check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
