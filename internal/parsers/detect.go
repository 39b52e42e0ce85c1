package parsers

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"

	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
)

// Detector classifies bill files by extension and a bounded content sniff
type Detector struct {
	sniffBytes int
	banners    [][]byte
}

// NewDetector creates a Detector for the WeChat banner of the given config
func NewDetector(cfg *Config) *Detector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	banner := cfg.Profile.Platforms.WeChat.Banner
	d := &Detector{sniffBytes: cfg.SniffBytes}
	if banner != "" {
		d.banners = append(d.banners, []byte(banner))
		if gbk, err := simplifiedchinese.GBK.NewEncoder().String(banner); err == nil {
			d.banners = append(d.banners, []byte(gbk))
		}
	}
	return d
}

// Detect returns the platform of the file at path.
//
// .xlsx files are always WeChat. .csv files are WeChat when the banner
// appears in the first bytes, otherwise Alipay. Everything else is unknown.
func (d *Detector) Detect(path string) (models.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return models.SourceWeChat, nil
	case ".csv":
	default:
		return models.SourceUnknown, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.SourceUnknown, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return models.SourceUnknown, apperrors.FileError(apperrors.CodeFileRead, path, err)
	}
	defer f.Close()

	prefix := make([]byte, d.sniffBytes)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return models.SourceUnknown, apperrors.FileError(apperrors.CodeFileRead, path, err)
	}
	prefix = prefix[:n]

	for _, banner := range d.banners {
		if bytes.Contains(prefix, banner) {
			return models.SourceWeChat, nil
		}
	}
	return models.SourceAlipay, nil
}

// IsBillFile reports whether the extension is one the detector can classify
func IsBillFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
