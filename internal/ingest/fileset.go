package ingest

import (
	"os"
	"path/filepath"
	"sort"

	"bill-analytics-service/internal/parsers"
	apperrors "bill-analytics-service/pkg/errors"
)

// FileSet enumerates the raw export files of one session. The set is treated
// as opaque and read fresh on every load.
type FileSet interface {
	Files() ([]string, error)
}

// StaticFileSet is a fixed list of paths, enumerated in lexical order
type StaticFileSet []string

// Files returns the paths sorted lexically
func (s StaticFileSet) Files() ([]string, error) {
	files := append([]string(nil), s...)
	sort.Strings(files)
	return files, nil
}

// DirFileSet is a session upload directory. Only .csv and .xlsx files are
// enumerated; subdirectories and other files are ignored.
type DirFileSet struct {
	Dir string
}

// NewDirFileSet creates a DirFileSet for dir
func NewDirFileSet(dir string) *DirFileSet {
	return &DirFileSet{Dir: dir}
}

// Files returns the bill files of the directory in lexical order
func (d *DirFileSet) Files() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, d.Dir, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileRead, d.Dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !parsers.IsBillFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(d.Dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ExpandPaths turns command-line arguments into a file list: directories
// contribute their bill files, plain paths are kept as given.
func ExpandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			dirFiles, err := NewDirFileSet(arg).Files()
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
			continue
		}
		files = append(files, arg)
	}
	return StaticFileSet(files).Files()
}
