package logfinder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
)

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func resolved(t *testing.T, dir string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return r
}

func TestParseGameName(t *testing.T) {
	tests := []struct {
		name string
		uid  int64
		ok   bool
	}{
		{"game_25997214.log", 25997214, true},
		{"game_1.log", 1, true},
		{"game_0.log", 0, false},
		{"Game_25997214.log", 0, false},
		{"game_25997214.log.bak", 0, false},
		{"game_abc.log", 0, false},
		{"game_.log", 0, false},
		{"game_99999999999999999999.log", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, ok := ParseGameName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.uid, uid)
		})
	}
}

func TestParseClientName(t *testing.T) {
	date, seq, ok := ParseClientName("client.log.2025-11-26.3.log")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 11, 26, 0, 0, 0, 0, time.UTC), date)
	assert.Equal(t, 3, seq)

	for _, name := range []string{
		"client.log",
		"client.log.2025-11-26.log",
		"client.log.2025-13-40.0.log",
		"client.log.26-11-2025.0.log",
		"Client.log.2025-11-26.0.log",
	} {
		_, _, ok := ParseClientName(name)
		assert.False(t, ok, name)
	}
}

func TestDiscover_Game(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "game_25997260.log", "info: GameState Launching\n")
	touch(t, dir, "game_25997214.log", "info: GameState Launching\n")
	touch(t, dir, "game_notes.log", "hello\n")
	touch(t, dir, "client.log.2025-11-26.0.log", "x\n")
	touch(t, dir, "game_1.log", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	files, skipped, err := Discover(dir, model.CategoryGame)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, int64(25997214), files[0].MatchUID)
	assert.Equal(t, int64(25997260), files[1].MatchUID)
	assert.Equal(t, filepath.Join(resolved(t, dir), "game_25997214.log"), files[0].Path)
	assert.Equal(t, model.CategoryGame, files[0].Category)
	assert.False(t, files[0].ModTime.IsZero())

	require.Len(t, skipped, 2)
	reasons := map[string]error{}
	for _, s := range skipped {
		reasons[filepath.Base(s.Path)] = s.Reason
	}
	assert.ErrorIs(t, reasons["game_notes.log"], model.ErrUnrecognizedName)
	assert.ErrorIs(t, reasons["game_1.log"], model.ErrUnsupportedContent)
}

func TestDiscover_ClientOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "client.log.2025-11-27.0.log", "x\n")
	touch(t, dir, "client.log.2025-11-26.1.log", "x\n")
	touch(t, dir, "client.log.2025-11-26.0.log", "x\n")

	files, skipped, err := Discover(dir, model.CategoryClient)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
	}
	assert.Equal(t, []string{
		"client.log.2025-11-26.0.log",
		"client.log.2025-11-26.1.log",
		"client.log.2025-11-27.0.log",
	}, names)
	assert.Equal(t, 1, files[1].Sequence)
}

func TestDiscover_NoFiles(t *testing.T) {
	_, _, err := Discover(t.TempDir(), model.CategoryGame)
	assert.True(t, errors.Is(err, ErrNoLogFiles))
}

func TestDiscover_UnknownCategory(t *testing.T) {
	_, _, err := Discover(t.TempDir(), model.Category("replay"))
	assert.Error(t, err)
}

func TestFindLogDir(t *testing.T) {
	dir := t.TempDir()

	got, err := FindLogDir(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved(t, dir), got)

	_, err = FindLogDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrLogDirNotFound)

	file := touch(t, dir, "game_1.log", "x")
	_, err = FindLogDir(file)
	assert.ErrorIs(t, err, ErrLogDirNotFound)

	_, err = FindLogDir("")
	assert.ErrorIs(t, err, ErrLogDirNotFound)
}
