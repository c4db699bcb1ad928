// Package logreader reads a static log file line by line.
package logreader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nxadm/tail"

	"github.com/dann1kid/faf-ddos-incidents/internal/safefile"
)

// Line is one line of a log file. Num is 1-based.
type Line struct {
	Num  int
	Text string
}

// Open checks that path is a regular file and returns its FileInfo.
// Use it to fetch the modification time before calling Each.
func Open(path string) (os.FileInfo, error) {
	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return info, nil
}

// Each calls fn for every line of path in file order. It stops at the end of
// the file, when ctx is cancelled or when fn returns an error, and returns
// that error. Trailing CR characters are removed.
func Each(ctx context.Context, path string, fn func(Line) error) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    false,
		ReOpen:    false,
		MustExist: true,
		Poll:      true, // no inotify watch for a file that is read once
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	num := 0
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Wait(); err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				return nil
			}
			if line.Err != nil {
				_ = t.Stop()
				return fmt.Errorf("read %s: %w", path, line.Err)
			}
			num++
			if err := fn(Line{Num: num, Text: strings.TrimRight(line.Text, "\r")}); err != nil {
				_ = t.Stop()
				return err
			}
		}
	}
}
