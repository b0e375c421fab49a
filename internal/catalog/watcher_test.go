package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	c := MustDefault()
	w, err := NewWatcher(path, c)
	require.NoError(t, err)

	reloaded := make(chan error, 4)
	w.OnReload(func(err error) { reloaded <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}

	route, err := c.Route(ctx, "flashcards")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", route.PrimaryModel)
}

func TestWatcher_InvalidFileKeepsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  summarization:\n    primary: mystery\n"), 0o644))

	c := MustDefault()
	w, err := NewWatcher(path, c)
	require.NoError(t, err)
	w.Start(context.Background())
	defer w.Stop()

	assert.Error(t, w.Reload())

	route, err := c.Route(context.Background(), "summarization")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", route.PrimaryModel)
}
