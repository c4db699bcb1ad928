// Package logfinder locates FAF game and client log files in a log directory.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/safefile"
)

// Sentinel errors.
var (
	ErrLogDirNotFound = errors.New("log directory not found")
	ErrNoLogFiles     = errors.New("no log files found")
)

// Globs select candidate files per category. Candidates are then checked
// against the exact name grammar.
var globs = map[model.Category]string{
	model.CategoryGame:   "game_*.log",
	model.CategoryClient: "client.log.*.log",
}

// File is a discovered log file.
type File struct {
	Path     string // absolute
	Category model.Category
	ModTime  time.Time
	Size     int64

	MatchUID int64     // game logs
	Date     time.Time // client logs
	Sequence int       // client logs
}

// Skipped is a candidate file that will not be parsed.
type Skipped struct {
	Path   string
	Reason error
}

// FindLogDir resolves dir to an absolute directory path with symlinks resolved.
// Returns ErrLogDirNotFound if dir does not exist or is not a directory.
func FindLogDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: no directory configured", ErrLogDirNotFound)
	}
	resolved := resolveLogDir(dir)
	if resolved == "" {
		return "", fmt.Errorf("%w: %s", ErrLogDirNotFound, dir)
	}
	return resolved, nil
}

// Discover lists the log files of category in dir, in processing order:
// game logs by match UID, client logs by date then sequence.
//
// Files that match the category glob but not its name grammar, non-regular
// files and files whose content is not text are returned as Skipped.
// Returns ErrNoLogFiles if there is nothing to parse or skip.
func Discover(dir string, category model.Category) ([]File, []Skipped, error) {
	glob, ok := globs[category]
	if !ok {
		return nil, nil, fmt.Errorf("unknown log category %q", category)
	}
	root, err := FindLogDir(dir)
	if err != nil {
		return nil, nil, err
	}

	matches, err := filepath.Glob(filepath.Join(root, glob))
	if err != nil {
		return nil, nil, fmt.Errorf("globbing log files: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil, ErrNoLogFiles
	}

	var (
		files   []File
		skipped []Skipped
	)
	for _, path := range matches {
		f, err := inspect(path, category)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: err})
			continue
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.MatchUID != b.MatchUID:
			return a.MatchUID < b.MatchUID
		case !a.Date.Equal(b.Date):
			return a.Date.Before(b.Date)
		case a.Sequence != b.Sequence:
			return a.Sequence < b.Sequence
		}
		return a.Path < b.Path
	})
	return files, skipped, nil
}

// inspect stats a candidate once and caches the result in the File.
func inspect(path string, category model.Category) (File, error) {
	f := File{Path: path, Category: category}
	name := filepath.Base(path)

	var ok bool
	switch category {
	case model.CategoryGame:
		f.MatchUID, ok = ParseGameName(name)
	case model.CategoryClient:
		f.Date, f.Sequence, ok = ParseClientName(name)
	}
	if !ok {
		return File{}, model.ErrUnrecognizedName
	}

	info, mtype, err := safefile.Inspect(path)
	if err != nil {
		return File{}, err
	}
	if info.Size() > 0 && !safefile.IsText(mtype) {
		return File{}, fmt.Errorf("%w: %s", model.ErrUnsupportedContent, mtype.String())
	}
	f.ModTime = info.ModTime()
	f.Size = info.Size()
	return f, nil
}

// resolveLogDir returns the absolute, symlink-resolved form of dir, or ""
// if it is not an existing directory.
func resolveLogDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return ""
	}
	return abs
}
