package pipeline

import (
	"context"
	"kbsync/internal/model"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(paths ...string) <-chan model.FileEvent {
	ch := make(chan model.FileEvent, len(paths))
	for _, p := range paths {
		ch <- model.FileEvent{Type: model.EventWrite, Path: p}
	}
	close(ch)
	return ch
}

func collect(ch <-chan model.FileEvent) []string {
	var out []string
	for e := range ch {
		out = append(out, e.Path)
	}
	return out
}

func TestFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/.syncignore", []byte("*.log\nbuild/\n"), 0644))
	require.NoError(t, fs.MkdirAll("/p/build", 0755))

	f := NewFilter(fs, "/p")
	got := collect(f.Run(feed(
		"/p/a.txt",
		"/p/x.log",
		"/p/build",
		"/p/build/out.bin",
		"/p/.project_cache.json",
		"/p/a.txt.kbsync.tmp",
		"/elsewhere/z",
		"/p/docs/b.md",
	)))

	assert.Equal(t, []string{"/p/a.txt", "/p/docs/b.md"}, got)
}

func TestFilterReloadsRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFilter(fs, "/p")
	assert.False(t, f.Skip("/p/a.txt", false))
	assert.True(t, f.Skip("/p/.git", true))

	require.NoError(t, afero.WriteFile(fs, "/p/.syncignore", []byte("a.txt\n"), 0644))
	got := collect(f.Run(feed("/p/.syncignore", "/p/a.txt", "/p/b.txt")))

	assert.Equal(t, []string{"/p/.syncignore", "/p/b.txt"}, got)
	assert.True(t, f.Skip("/p/a.txt", false))
}

// waitBatch advances the clock until a batch comes out.
func waitBatch(t *testing.T, clock *clockwork.FakeClock, out <-chan []model.FileEvent, delay time.Duration) []model.FileEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(delay)

		select {
		case batch := <-out:
			return batch
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no batch emitted")
		}
	}
}

func TestDebounceBatchesBursts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	in := make(chan model.FileEvent)
	out := Debounce(in, 2*time.Second, clock)

	for _, p := range []string{"/p/a", "/p/b", "/p/a"} {
		in <- model.FileEvent{Type: model.EventWrite, Path: p}
	}

	batch := waitBatch(t, clock, out, 2*time.Second)
	require.Len(t, batch, 3)
	assert.Equal(t, "/p/a", batch[0].Path)

	in <- model.FileEvent{Type: model.EventRemove, Path: "/p/c"}
	batch = waitBatch(t, clock, out, 2*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, model.EventRemove, batch[0].Type)

	close(in)
	_, ok := <-out
	assert.False(t, ok)
}

func TestDebounceFlushesOnClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	in := make(chan model.FileEvent)
	out := Debounce(in, time.Minute, clock)

	in <- model.FileEvent{Type: model.EventCreate, Path: "/p/a"}
	close(in)

	batch, ok := <-out
	require.True(t, ok)
	assert.Len(t, batch, 1)

	_, ok = <-out
	assert.False(t, ok)
}
