package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/saravenpi/relay/internal/api"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
)

const module = "dispatcher"

const (
	fallbackReply = "Sorry, I couldn't process your request."
	uploadedReply = "File uploaded successfully!"
)

var ErrFileTooLarge = errors.New("file exceeds the upload limit")

// Backend is the subset of the HTTP client the dispatcher routes to.
type Backend interface {
	Chat(ctx context.Context, message string, mode models.Mode) (*api.Reply, error)
	Relay(ctx context.Context, message string) (*api.Reply, error)
	StoreKnowledge(ctx context.Context, fileName string, content io.Reader) (*api.Reply, error)
}

// Dispatcher sends user input to the backend and turns every outcome,
// failures included, into a message in the log.
type Dispatcher struct {
	store          *conversation.Store
	status         *conversation.Status
	backend        Backend
	log            logger.ILogger
	maxUploadBytes int64
}

func New(store *conversation.Store, status *conversation.Status, backend Backend, log logger.ILogger, maxUploadBytes int64) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		store:          store,
		status:         status,
		backend:        backend,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// Dispatch records text as a user message, routes it by mode and appends the
// bot reply. It returns the reply, or false when text was blank and nothing
// happened.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, mode models.Mode) (models.Message, bool) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, false
	}

	d.store.Append(models.Message{
		Type:    models.MessageUser,
		Mode:    mode,
		Content: text,
	})

	d.status.SetAwaiting(true)
	defer d.status.SetAwaiting(false)

	reply, err := d.route(ctx, text, mode)
	if err != nil {
		d.log.Error(module, "request failed", map[string]interface{}{"mode": string(mode), "error": err.Error()})
		return d.store.Append(models.Message{
			Type:    models.MessageBot,
			Mode:    mode,
			Content: fmt.Sprintf("Sorry, there was an error: %s. Please try again.", err),
		}), true
	}

	return d.store.Append(botMessage(reply, mode)), true
}

func (d *Dispatcher) route(ctx context.Context, text string, mode models.Mode) (*api.Reply, error) {
	if mode == models.ModeWhatsApp {
		return d.backend.Relay(ctx, text)
	}
	return d.backend.Chat(ctx, text, mode)
}

func botMessage(reply *api.Reply, mode models.Mode) models.Message {
	content := reply.Response
	if content == "" {
		content = reply.Message
	}
	if content == "" {
		content = fallbackReply
	}

	msg := models.Message{
		Type:    models.MessageBot,
		Mode:    mode,
		Content: content,
	}
	if len(reply.Documents) > 0 {
		msg.Documents = reply.Documents
		msg.HasDocuments = true
	}
	return msg
}

// Upload stores the file at path in the knowledge base and appends the
// outcome as a store-mode bot message. The error is returned as well for
// callers that need an exit status.
func (d *Dispatcher) Upload(ctx context.Context, path string) (models.Message, error) {
	d.status.SetUploading(true)
	defer d.status.SetUploading(false)

	reply, err := d.upload(ctx, path)
	if err != nil {
		d.log.Error(module, "upload failed", map[string]interface{}{"path": path, "error": err.Error()})
		return d.store.Append(models.Message{
			Type:    models.MessageBot,
			Mode:    models.ModeStore,
			Content: fmt.Sprintf("Sorry, there was an error uploading your file: %s", err),
		}), err
	}

	content := reply.Message
	if content == "" {
		content = uploadedReply
	}
	d.log.Info(module, "file uploaded", map[string]interface{}{"path": path})
	return d.store.Append(models.Message{
		Type:    models.MessageBot,
		Mode:    models.ModeStore,
		Content: content,
	}), nil
}

func (d *Dispatcher) upload(ctx context.Context, path string) (*api.Reply, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	if d.maxUploadBytes > 0 && info.Size() > d.maxUploadBytes {
		return nil, fmt.Errorf("%w (%d MB)", ErrFileTooLarge, d.maxUploadBytes/(1024*1024))
	}

	return d.backend.StoreKnowledge(ctx, path, f)
}
