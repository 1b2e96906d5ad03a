package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestAtomicWrite(t *testing.T) {
	fs := afero.NewMemMapFs()

	n, err := AtomicWrite(fs, "/root/a/b/file.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	b, err := afero.ReadFile(fs, "/root/a/b/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	exists, _ := afero.Exists(fs, "/root/a/b/file.txt.kbsync.tmp")
	assert.False(t, exists)
}

func TestAtomicWriteKeepsOldContentOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f.txt", []byte("old"), 0644))

	_, err := AtomicWrite(fs, "/f.txt", failingReader{})
	assert.Error(t, err)

	b, err := afero.ReadFile(fs, "/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))

	exists, _ := afero.Exists(fs, "/f.txt.kbsync.tmp")
	assert.False(t, exists)
}

func TestRemoveIfExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f.txt", []byte("x"), 0644))

	assert.NoError(t, RemoveIfExists(fs, "/f.txt"))
	assert.NoError(t, RemoveIfExists(fs, "/f.txt"))
	assert.NoError(t, RemoveAllIfExists(fs, "/missing/dir"))
}
