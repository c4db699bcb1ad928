// Package safefile opens log and pattern files only when they are regular files.
package safefile

import (
	"errors"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotRegularFile is returned for symlinks, FIFOs, devices, sockets and directories.
var ErrNotRegularFile = errors.New("not a regular file")

// OpenRegular opens path after checking, without following symlinks, that it
// is a regular file, then re-checks the opened descriptor so a file swapped
// between the two steps is still rejected.
//
// Returns:
//   - (*os.File, os.FileInfo, nil) on success
//   - (nil, nil, error) on failure (file closed automatically)
//
// The caller must close the returned file.
func OpenRegular(path string) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}

	return f, info, nil
}

// Inspect opens path with OpenRegular and detects its content type from the
// leading bytes. The file is closed before returning.
func Inspect(path string) (os.FileInfo, *mimetype.MIME, error) {
	f, info, err := OpenRegular(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, nil, err
	}
	return info, mtype, nil
}

// IsText reports whether m is text/plain or one of its descendants
// (JSON, CSV and the like).
func IsText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
