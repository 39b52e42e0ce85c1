package parsers

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

var encodings = map[string]encoding.Encoding{
	"utf-8":     unicode.UTF8,
	"utf-8-sig": unicode.UTF8BOM,
	"gbk":       simplifiedchinese.GBK,
	"gb18030":   simplifiedchinese.GB18030,
}

// IsKnownEncoding reports whether name can be used as a candidate encoding
func IsKnownEncoding(name string) bool {
	_, ok := encodings[strings.ToLower(name)]
	return ok
}

// Decode converts data to UTF-8 using the named encoding. Decoding is strict:
// any byte sequence the decoder had to replace makes it fail.
func Decode(data []byte, name string) (string, error) {
	enc, ok := encodings[strings.ToLower(name)]
	if !ok {
		return "", apperrors.ConfigurationError("encoding", name, nil)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	if bytes.Count(out, replacementChar) > literalReplacements(enc, data) {
		return "", errInvalidSequence
	}
	return strings.TrimPrefix(string(out), "\ufeff"), nil
}

var (
	errInvalidSequence = errors.New("invalid byte sequence for encoding")
	replacementChar    = []byte("\ufffd")
)

// literalReplacements counts the U+FFFD characters data itself encodes, as
// opposed to the ones the decoder substitutes for invalid input. Encodings
// that cannot represent U+FFFD report zero.
func literalReplacements(enc encoding.Encoding, data []byte) int {
	encoded, err := enc.NewEncoder().Bytes(replacementChar)
	if err != nil {
		return 0
	}
	encoded = bytes.TrimPrefix(encoded, []byte("\ufeff"))
	if len(encoded) == 0 {
		return 0
	}
	return bytes.Count(data, encoded)
}

// Document is a decoded bill file with its header row located
type Document struct {
	Path        string
	Encoding    string
	Lines       []string
	HeaderIndex int
}

// Header returns the header line
func (d *Document) Header() string {
	return d.Lines[d.HeaderIndex]
}

// Body returns the header line and everything after it
func (d *Document) Body() string {
	return strings.Join(d.Lines[d.HeaderIndex:], "\n")
}

// Reader opens raw bill files with an ordered list of candidate encodings
type Reader struct {
	logger logger.Logger
}

// NewReader creates a Reader
func NewReader(log logger.Logger) *Reader {
	return &Reader{logger: logger.OrGlobal(log, "reader")}
}

// Open decodes path with each candidate encoding in turn and returns the
// first decoding whose lines contain a header row carrying every marker.
//
// A candidate that decodes but has no such row falls through to the next
// one, since a wrong single-byte-pair encoding can decode garbage without
// error. If no candidate decodes at all the result is a DecodingError;
// if some decoded but none had the markers it is a HeaderNotFoundError.
func (r *Reader) Open(path string, candidates []string, markers []string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileRead, path, err)
	}

	decodedAny := false
	var lastErr error
	for _, name := range candidates {
		text, err := Decode(data, name)
		if err != nil {
			r.logger.WithFields(logger.Fields{
				"file":     path,
				"encoding": name,
			}).WithError(err).Debug("Candidate encoding failed")
			lastErr = err
			continue
		}
		decodedAny = true

		lines := SplitLines(text)
		header := FindMarkerRow(lines, markers, len(lines))
		if header < 0 {
			r.logger.WithFields(logger.Fields{
				"file":     path,
				"encoding": name,
			}).Debug("Decoded without header markers, trying next encoding")
			continue
		}

		r.logger.WithFields(logger.Fields{
			"file":         path,
			"encoding":     name,
			"header_index": header,
			"lines":        len(lines),
		}).Debug("Decoded bill file")

		return &Document{Path: path, Encoding: name, Lines: lines, HeaderIndex: header}, nil
	}

	if !decodedAny {
		return nil, apperrors.DecodingError(path, candidates, lastErr)
	}
	return nil, apperrors.HeaderNotFoundError(path, markers)
}

// SplitLines splits decoded text into lines, dropping carriage returns
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// FindMarkerRow returns the zero-based index of the first line among the
// first limit lines that contains every marker, or -1.
func FindMarkerRow(lines []string, markers []string, limit int) int {
	if len(markers) == 0 {
		return -1
	}
	if limit > len(lines) {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		if containsAll(lines[i], markers) {
			return i
		}
	}
	return -1
}

func containsAll(line string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(line, m) {
			return false
		}
	}
	return true
}
