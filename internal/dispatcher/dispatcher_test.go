package dispatcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/saravenpi/relay/internal/api"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/pushchannel"
	"github.com/saravenpi/relay/internal/storage"
	"github.com/saravenpi/relay/internal/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	d      *Dispatcher
	store  *conversation.Store
	status *conversation.Status
	hits   *atomic.Int32
}

func newFixture(t *testing.T, h http.HandlerFunc) fixture {
	t.Helper()
	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(server.Close)

	store := conversation.NewStore(storage.NewSessionStorage(), logger.NewNop())
	status := conversation.NewStatus()
	client := api.NewClient(server.URL, "frontend-user", 0)
	return fixture{
		d:      New(store, status, client, logger.NewNop(), 10*1024*1024),
		store:  store,
		status: status,
		hits:   hits,
	}
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestDispatch_BlankTextIsNoop(t *testing.T) {
	f := newFixture(t, jsonReply(`{"response":"hi"}`))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, ok := f.d.Dispatch(context.Background(), text, models.ModeChat)
		assert.False(t, ok)
	}

	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, int32(0), f.hits.Load())
}

func TestDispatch_SuccessWithDocuments(t *testing.T) {
	f := newFixture(t, jsonReply(`{"response":"hi","documents":[{"id":1,"fileName":"a.pdf"}]}`))

	reply, ok := f.d.Dispatch(context.Background(), "find my pdf", models.ModeStore)
	require.True(t, ok)

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageUser, msgs[0].Type)
	assert.Equal(t, "find my pdf", msgs[0].Content)

	bot := msgs[1]
	assert.Equal(t, reply, bot)
	assert.Equal(t, models.MessageBot, bot.Type)
	assert.Equal(t, models.ModeStore, bot.Mode)
	assert.Equal(t, "hi", bot.Content)
	assert.True(t, bot.HasDocuments)
	require.Len(t, bot.Documents, 1)
	assert.Equal(t, "a.pdf", bot.Documents[0].FileName)
	assert.False(t, f.status.Awaiting())
}

func TestDispatch_FallsBackToMessageThenFixedText(t *testing.T) {
	f := newFixture(t, jsonReply(`{"message":"stored"}`))
	reply, _ := f.d.Dispatch(context.Background(), "x", models.ModeChat)
	assert.Equal(t, "stored", reply.Content)
	assert.False(t, reply.HasDocuments)

	f = newFixture(t, jsonReply(`{}`))
	reply, _ = f.d.Dispatch(context.Background(), "x", models.ModeChat)
	assert.Equal(t, "Sorry, I couldn't process your request.", reply.Content)
}

func TestDispatch_HTTPFailureBecomesMessage(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	var awaitingSeen bool
	f.status.OnChange(func() {
		if f.status.Awaiting() {
			awaitingSeen = true
		}
	})

	reply, ok := f.d.Dispatch(context.Background(), "hello", models.ModeChat)
	require.True(t, ok)

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageBot, reply.Type)
	assert.Contains(t, reply.Content, "500")
	assert.Equal(t, "Sorry, there was an error: HTTP 500: internal error. Please try again.", reply.Content)
	assert.True(t, awaitingSeen)
	assert.False(t, f.status.Awaiting())
}

func TestDispatch_WhatsAppRoutesToRelay(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whatsapp/incoming_manual", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "Message sent to WhatsApp")
	})

	reply, _ := f.d.Dispatch(context.Background(), "hey", models.ModeWhatsApp)

	assert.Equal(t, "Message sent to WhatsApp", reply.Content)
	assert.Equal(t, models.ModeWhatsApp, reply.Mode)
}

type failingBackend struct{}

func (failingBackend) Chat(context.Context, string, models.Mode) (*api.Reply, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) Relay(context.Context, string) (*api.Reply, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) StoreKnowledge(context.Context, string, io.Reader) (*api.Reply, error) {
	return nil, errors.New("connection refused")
}

func TestDispatch_NetworkFailureBecomesMessage(t *testing.T) {
	store := conversation.NewStore(storage.NewSessionStorage(), logger.NewNop())
	d := New(store, conversation.NewStatus(), failingBackend{}, nil, 0)

	reply, ok := d.Dispatch(context.Background(), "hello", models.ModeChat)

	require.True(t, ok)
	assert.Equal(t, "Sorry, there was an error: connection refused. Please try again.", reply.Content)
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestUpload_StoresFile(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/knowledge/store", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})
	path := writeFile(t, "notes.txt", 32)

	msg, err := f.d.Upload(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "File uploaded successfully!", msg.Content)
	assert.Equal(t, models.ModeStore, msg.Mode)
	assert.False(t, f.status.Uploading())
}

func TestUpload_RejectsLargeFileWithoutRequest(t *testing.T) {
	f := newFixture(t, jsonReply(`{}`))
	f.d.maxUploadBytes = 1024
	path := writeFile(t, "big.bin", 2048)

	msg, err := f.d.Upload(context.Background(), path)

	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, msg.Content, "Sorry, there was an error uploading your file:")
	assert.Equal(t, int32(0), f.hits.Load())
	assert.Equal(t, 1, f.store.Len())
}

func TestUpload_MissingFile(t *testing.T) {
	f := newFixture(t, jsonReply(`{}`))

	_, err := f.d.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))

	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, int32(0), f.hits.Load())
}

func TestDispatch_PushedMessagesLandBetweenRequestAndReply(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		jsonReply(`{"response":"bot reply"}`)(w, r)
	})
	syncer := synchronizer.New(f.store, f.status, "frontend-user", logger.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.d.Dispatch(context.Background(), "question", models.ModeChat)
	}()

	<-entered
	assert.True(t, f.status.Awaiting())

	syncer.Handle(pushchannel.Event{Kind: pushchannel.EventMessage, Frame: pushchannel.Frame{
		Type:     synchronizer.FrameWhatsApp,
		Message:  "hi from phone",
		Response: "relayed answer",
	}})
	assert.True(t, f.status.Awaiting(), "still waiting on the backend")

	close(release)
	<-done
	assert.False(t, f.status.Awaiting())

	var contents []string
	for _, m := range f.store.Messages() {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"question", "📱 WhatsApp: hi from phone", "relayed answer", "bot reply"}, contents)
	assert.Equal(t, models.MessageUser, f.store.Messages()[0].Type)
}
