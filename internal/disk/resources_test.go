package disk

import (
	"context"
	"fmt"
	"kbsync/internal/fakedisk"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPaginates(t *testing.T) {
	c, srv, _ := newTestClient(t, 3)
	for i := range 4 {
		srv.Store().WriteFile(fmt.Sprintf("app:/p/f%d.txt", i), []byte{byte(i)})
	}
	srv.Store().MkdirAll("app:/p/sub")

	items, err := c.List(context.Background(), ParsePath("app:/p"))
	require.NoError(t, err)
	require.Len(t, items, 5)

	names := make(map[string]bool)
	for _, it := range items {
		names[it.Name] = true
	}
	assert.Len(t, names, 5)
	assert.True(t, names["sub"])

	var offsets []string
	for _, call := range srv.Calls() {
		offsets = append(offsets, call.Query.Get("offset"))
	}
	assert.Equal(t, []string{"0", "3"}, offsets)
}

func TestListEmptyAndFile(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)
	srv.Store().MkdirAll("app:/empty")
	srv.Store().WriteFile("app:/file.txt", []byte("x"))

	items, err := c.List(context.Background(), ParsePath("app:/empty"))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = c.List(context.Background(), ParsePath("app:/file.txt"))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = c.List(context.Background(), ParsePath("app:/nope"))
	assert.True(t, IsNotFound(err))
}

func TestListReportsTypes(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)
	srv.Store().WriteFile("app:/p/a.txt", []byte("hello"))
	srv.Store().MkdirAll("app:/p/d")

	items, err := c.List(context.Background(), ParsePath("app:/p"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a.txt", items[0].Name)
	assert.False(t, items[0].IsDir())
	assert.Equal(t, int64(5), items[0].Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", items[0].MD5)
	assert.True(t, items[1].IsDir())
}

func TestCreateDir(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)

	require.NoError(t, c.CreateDir(context.Background(), ParsePath("app:/a/b/c")))
	assert.True(t, srv.Store().IsDir("app:/a"))
	assert.True(t, srv.Store().IsDir("app:/a/b"))
	assert.True(t, srv.Store().IsDir("app:/a/b/c"))

	require.NoError(t, c.CreateDir(context.Background(), ParsePath("app:/a/b/c")), "existing dir is success")
}

func TestExists(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)
	srv.Store().WriteFile("app:/x", nil)

	ok, err := c.Exists(context.Background(), ParsePath("app:/x"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(context.Background(), ParsePath("app:/y"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)
	srv.Store().WriteFile("app:/d/x", []byte("x"))

	require.NoError(t, c.Remove(context.Background(), ParsePath("app:/d")))
	assert.False(t, srv.Store().Exists("app:/d/x"))

	assert.NoError(t, c.Remove(context.Background(), ParsePath("app:/d")), "already removed")
}

func TestMoveAndCopy(t *testing.T) {
	c, srv, _ := newTestClient(t, 0)
	srv.Store().WriteFile("app:/a.txt", []byte("a"))

	require.NoError(t, c.Copy(context.Background(), ParsePath("app:/a.txt"), ParsePath("app:/b.txt"), true))
	require.NoError(t, c.Move(context.Background(), ParsePath("app:/a.txt"), ParsePath("app:/c.txt"), true))

	assert.False(t, srv.Store().Exists("app:/a.txt"))
	b, _ := srv.Store().ReadFile("app:/b.txt")
	cc, _ := srv.Store().ReadFile("app:/c.txt")
	assert.Equal(t, "a", string(b))
	assert.Equal(t, "a", string(cc))

	err := c.Move(context.Background(), ParsePath("app:/b.txt"), ParsePath("app:/c.txt"), false)
	assert.True(t, IsConflict(err))

	err = c.Move(context.Background(), ParsePath("app:/gone"), ParsePath("app:/c.txt"), true)
	assert.True(t, IsNotFound(err))

	for _, call := range srv.Calls() {
		if call.Method == http.MethodPost {
			assert.Contains(t, []string{fakedisk.APIPrefix + "/move", fakedisk.APIPrefix + "/copy"}, call.Path)
		}
	}
}
