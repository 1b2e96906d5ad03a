package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Kind{"a": KindEmpty, "b": KindFile, "c": KindDir})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"empty","b":"file","c":"dir"}`, string(b))

	var k Kind
	assert.Error(t, json.Unmarshal([]byte(`"symlink"`), &k))
}

func TestLocalState(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/a.txt", []byte("hello"), 0644))

	st, err := LocalState(fs, "/p/a.txt", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, KindFile, st.Kind)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", st.MD5)
	assert.Equal(t, int64(5), st.Size)
	assert.Equal(t, "a.txt", st.Path)

	st, err = LocalState(fs, "/p", "")
	require.NoError(t, err)
	assert.Equal(t, KindDir, st.Kind)
	assert.Empty(t, st.MD5)

	st, err = LocalState(fs, "/p/missing", "missing")
	require.NoError(t, err)
	assert.Equal(t, Absent("missing"), st)
	assert.Zero(t, st.Size)
}

func TestMatches(t *testing.T) {
	now := time.Now()
	a := FileState("x", "h1", 1, now)

	assert.True(t, a.Matches(FileState("x", "h1", 1, now.Add(time.Hour))))
	assert.False(t, a.Matches(FileState("x", "h2", 1, now)))
	assert.False(t, a.Matches(DirState("x", now)))
	assert.True(t, DirState("x", now).Matches(DirState("x", now.Add(time.Minute))))
	assert.True(t, Absent("x").Matches(Absent("x")))
}
