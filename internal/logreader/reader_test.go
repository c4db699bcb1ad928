package logreader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dann1kid/faf-ddos-incidents/internal/safefile"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game_1.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEach_ReadsAllLines(t *testing.T) {
	path := write(t, "first\r\nsecond\n\nlast without newline")

	var got []Line
	err := Each(context.Background(), path, func(l Line) error {
		got = append(got, l)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Num: 1, Text: "first"},
		{Num: 2, Text: "second"},
		{Num: 3, Text: ""},
		{Num: 4, Text: "last without newline"},
	}, got)
}

func TestEach_EmptyFile(t *testing.T) {
	path := write(t, "")
	calls := 0
	err := Each(context.Background(), path, func(Line) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestEach_StopsOnCallbackError(t *testing.T) {
	path := write(t, "a\nb\nc\n")
	stop := errors.New("stop")

	calls := 0
	err := Each(context.Background(), path, func(Line) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEach_Cancelled(t *testing.T) {
	path := write(t, "a\nb\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Each(ctx, path, func(Line) error { return nil })
	// Lines may already be buffered; cancellation wins on the next select.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestEach_MissingFile(t *testing.T) {
	err := Each(context.Background(), filepath.Join(t.TempDir(), "missing.log"), func(Line) error { return nil })
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := write(t, "x\n")
	info, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size())

	_, err = Open(filepath.Dir(path))
	assert.ErrorIs(t, err, safefile.ErrNotRegularFile)
}
