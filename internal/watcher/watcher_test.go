package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saravenpi/relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
}

func (u *recordingUploader) Upload(_ context.Context, path string) (models.Message, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	return models.Message{Content: "ok"}, nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func TestWatcher_DefaultExtensions(t *testing.T) {
	w, err := New(nil, &recordingUploader{}, nil)
	require.NoError(t, err)
	defer w.fs.Close()

	assert.Equal(t, DefaultExtensions, w.extensions)
}

func TestWatcher_FiltersByExtension(t *testing.T) {
	w, err := New([]string{"TXT", ".pdf"}, &recordingUploader{}, nil)
	require.NoError(t, err)
	defer w.fs.Close()

	assert.True(t, w.watched("/docs/a.txt"))
	assert.True(t, w.watched("/docs/b.PDF"))
	assert.False(t, w.watched("/docs/c.json"))
	assert.False(t, w.watched("/docs/.hidden.txt"))
}

func TestWatcher_UploadsSettledFilesOnce(t *testing.T) {
	dir := t.TempDir()
	uploader := &recordingUploader{}
	w, err := New([]string{".txt"}, uploader, nil)
	require.NoError(t, err)
	w.settle = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()

	// give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)
	target := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(target, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("first draft"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte("{}"), 0o644))

	assert.Eventually(t, func() bool { return len(uploader.uploaded()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{target}, uploader.uploaded())
}
