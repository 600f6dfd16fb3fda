package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, root, language, promptID, text string) {
	t.Helper()
	dir := filepath.Join(root, language)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, promptID+".txt"), []byte(text), 0o644))
}

func TestRepository_GetReadsFile(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, root, "en", "greeting", "Hello, {name}.")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	text, err := repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello, {name}.", text)
}

func TestRepository_GetMissingReturnsNotFound(t *testing.T) {
	root := t.TempDir()

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Get(context.Background(), "absent", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrPromptNotFound)
}

func TestRepository_GetCachesAcrossCalls(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, root, "en", "greeting", "v1")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	text, err := repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)

	// Overwrite the file on disk directly; without invalidation the
	// cached value should still win until the watcher (or an explicit
	// invalidate) notices the change.
	require.NoError(t, os.WriteFile(filepath.Join(root, "en", "greeting.txt"), []byte("v2"), 0o644))

	text, err = repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)
}

func TestRepository_InvalidateForcesReread(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, root, "en", "greeting", "v1")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "en", "greeting.txt"), []byte("v2"), 0o644))
	repo.invalidate(filepath.Join(root, "en", "greeting.txt"))

	text, err := repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
}

func TestRepository_DifferentLanguagesAreIndependent(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, root, "en", "greeting", "Hello")
	writePrompt(t, root, "fr", "greeting", "Bonjour")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	en, err := repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)
	fr, err := repo.Get(context.Background(), "greeting", "fr")
	require.NoError(t, err)

	assert.Equal(t, "Hello", en)
	assert.Equal(t, "Bonjour", fr)
}

func TestNew_ToleratesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist-yet")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Get(context.Background(), "anything", "en")
	assert.ErrorIs(t, err, ports.ErrPromptNotFound)
}

func TestRepository_WatcherPicksUpFileChange(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, root, "en", "greeting", "v1")

	repo, err := New(root, nil)
	require.NoError(t, err)
	defer repo.Close()
	if repo.watcher == nil {
		t.Skip("fsnotify watcher unavailable in this environment")
	}

	_, err = repo.Get(context.Background(), "greeting", "en")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "en", "greeting.txt"), []byte("v2"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		text, err := repo.Get(context.Background(), "greeting", "en")
		require.NoError(t, err)
		if text == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not invalidate the cache after a file change")
}
