package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/repository/sqlite"
)

func newTestContentStore(t *testing.T) (*ContentStore, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	store := sqlite.NewStore(db, zap.NewNop())
	t.Cleanup(func() { store.Close() })

	storageDir := filepath.Join(dir, "storage")
	cs, err := NewContentStore(storageDir, store, nil, zap.NewNop())
	require.NoError(t, err)
	return cs, storageDir
}

func writeAudio(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestResolve_NewFile(t *testing.T) {
	cs, storageDir := newTestContentStore(t)
	path := writeAudio(t, "interview.mp3", []byte("fake mp3 bytes"))

	file, isNew, err := cs.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "interview.mp3", file.OriginalName)
	assert.Equal(t, "mp3", file.Format)
	assert.Equal(t, int64(14), file.SizeBytes)
	assert.Len(t, file.ContentHash, 64)

	// The managed copy lives under a hash-prefix shard.
	wantPath := filepath.Join(storageDir, file.ContentHash[:2], file.ContentHash+".mp3")
	assert.Equal(t, wantPath, file.Path)
	_, err = os.Stat(wantPath)
	assert.NoError(t, err)
}

func TestResolve_IdenticalBytesDeduplicate(t *testing.T) {
	cs, _ := newTestContentStore(t)
	content := []byte("same bytes either way")

	first, isNew, err := cs.Resolve(context.Background(), writeAudio(t, "a.mp3", content))
	require.NoError(t, err)
	require.True(t, isNew)

	// Different name and path, same content.
	second, isNew, err := cs.Resolve(context.Background(), writeAudio(t, "b.mp3", content))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, "a.mp3", second.OriginalName, "first upload's name sticks")
}

func TestResolve_DifferentBytesDistinct(t *testing.T) {
	cs, _ := newTestContentStore(t)

	first, _, err := cs.Resolve(context.Background(), writeAudio(t, "a.mp3", []byte("one")))
	require.NoError(t, err)
	second, isNew, err := cs.Resolve(context.Background(), writeAudio(t, "a.mp3", []byte("two")))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)
}

func TestResolve_RejectsEmptyFile(t *testing.T) {
	cs, _ := newTestContentStore(t)

	_, _, err := cs.Resolve(context.Background(), writeAudio(t, "empty.wav", nil))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResolve_RejectsUnknownFormat(t *testing.T) {
	cs, _ := newTestContentStore(t)

	_, _, err := cs.Resolve(context.Background(), writeAudio(t, "notes.txt", []byte("text")))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResolve_MissingFileIsIOError(t *testing.T) {
	cs, _ := newTestContentStore(t)

	_, _, err := cs.Resolve(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindIO))
}

func TestResolve_SupportedFormats(t *testing.T) {
	cs, _ := newTestContentStore(t)

	for i, format := range []string{"mp3", "wav", "m4a", "mp4", "aac", "flac", "opus"} {
		path := writeAudio(t, "clip."+format, []byte{byte(i), 1, 2, 3})
		file, _, err := cs.Resolve(context.Background(), path)
		require.NoError(t, err, "format %s rejected", format)
		assert.Equal(t, format, file.Format)
	}
}
