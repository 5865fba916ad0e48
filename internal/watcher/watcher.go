package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
)

const module = "watcher"

var DefaultExtensions = []string{".pdf", ".txt", ".md", ".docx", ".csv"}

// Uploader stores one file in the knowledge base.
type Uploader interface {
	Upload(ctx context.Context, path string) (models.Message, error)
}

// Watcher uploads files that appear or change in a directory once they have
// been quiet for the settle period.
type Watcher struct {
	fs         *fsnotify.Watcher
	extensions []string
	uploader   Uploader
	log        logger.ILogger
	settle     time.Duration
}

func New(extensions []string, uploader Uploader, log logger.ILogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if log == nil {
		log = logger.NewNop()
	}

	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}

	return &Watcher{
		fs:         fsw,
		extensions: normalized,
		uploader:   uploader,
		log:        log,
		settle:     time.Second,
	}, nil
}

// Run watches dir until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	defer w.fs.Close()

	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.Info(module, "watching directory", map[string]interface{}{"dir": dir, "extensions": w.extensions})

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.watched(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(module, "watch error", map[string]interface{}{"error": err.Error()})

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if _, err := w.uploader.Upload(ctx, path); err != nil {
					w.log.Warn(module, "auto upload failed", map[string]interface{}{"path": path, "error": err.Error()})
				}
			}
		}
	}
}

func (w *Watcher) watched(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
