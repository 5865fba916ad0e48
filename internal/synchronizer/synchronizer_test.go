package synchronizer

import (
	"testing"
	"time"

	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/pushchannel"
	"github.com/saravenpi/relay/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynchronizer() (*Synchronizer, *conversation.Store, *conversation.Status) {
	store := conversation.NewStore(storage.NewSessionStorage(), logger.NewNop())
	status := conversation.NewStatus()
	return New(store, status, "frontend-user", logger.NewNop()), store, status
}

func message(f pushchannel.Frame) pushchannel.Event {
	return pushchannel.Event{Kind: pushchannel.EventMessage, Frame: f}
}

func TestSynchronizer_WhatsAppAppendsMessageAndDelayedResponse(t *testing.T) {
	s, store, _ := newTestSynchronizer()

	s.Handle(message(pushchannel.Frame{
		Type:      FrameWhatsApp,
		Message:   "are you open today?",
		Response:  "Yes, until 6pm.",
		Timestamp: 1700000000000,
	}))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	at := time.UnixMilli(1700000000000)

	assert.Equal(t, "📱 WhatsApp: are you open today?", msgs[0].Content)
	assert.Equal(t, at, msgs[0].Timestamp)
	assert.Equal(t, "Yes, until 6pm.", msgs[1].Content)
	assert.Equal(t, at.Add(time.Second), msgs[1].Timestamp)
	for _, m := range msgs {
		assert.Equal(t, models.MessageBot, m.Type)
		assert.Equal(t, models.SourceWhatsApp, m.Source)
		assert.Equal(t, models.ModeWhatsApp, m.Mode)
	}
}

func TestSynchronizer_SuppressesSelfEcho(t *testing.T) {
	s, store, _ := newTestSynchronizer()

	s.Handle(message(pushchannel.Frame{Type: FrameFrontend, UserID: "frontend-user", Message: "mine"}))
	assert.Equal(t, 0, store.Len())

	s.Handle(message(pushchannel.Frame{Type: FrameFrontend, UserID: "someone-else", Message: "theirs"}))
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "👤 Other user: theirs", msgs[0].Content)
	assert.Equal(t, models.SourceSync, msgs[0].Source)
	assert.Equal(t, models.ModeNone, msgs[0].Mode)
}

func TestSynchronizer_SystemMessage(t *testing.T) {
	s, store, _ := newTestSynchronizer()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Handle(message(pushchannel.Frame{Type: FrameSystem, Message: "maintenance at noon"}))

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "🔔 System: maintenance at noon", msgs[0].Content)
	assert.Equal(t, models.SourceSystem, msgs[0].Source)
	assert.Equal(t, now, msgs[0].Timestamp, "missing timestamp falls back to now")
}

func TestSynchronizer_IgnoresUnknownFrames(t *testing.T) {
	s, store, _ := newTestSynchronizer()

	assert.NotPanics(t, func() {
		s.Handle(message(pushchannel.Frame{Type: "typing_indicator"}))
		s.Handle(pushchannel.Event{Kind: pushchannel.EventError})
	})
	assert.Equal(t, 0, store.Len())
}

func TestSynchronizer_TracksConnection(t *testing.T) {
	s, _, status := newTestSynchronizer()
	var seen []bool
	s.OnConnectionChange(func(connected bool) { seen = append(seen, connected) })

	s.Handle(pushchannel.Event{Kind: pushchannel.EventConnected})
	assert.True(t, status.Connected())

	s.Handle(pushchannel.Event{Kind: pushchannel.EventDisconnected, CloseCode: 1006})
	assert.False(t, status.Connected())

	assert.Equal(t, []bool{true, false}, seen)
}

type fakeSource struct {
	fn func(pushchannel.Event)
}

func (f *fakeSource) Subscribe(fn func(pushchannel.Event)) func() {
	f.fn = fn
	return func() { f.fn = nil }
}

func TestSynchronizer_AttachAndDetach(t *testing.T) {
	s, store, _ := newTestSynchronizer()
	src := &fakeSource{}

	detach := s.Attach(src)
	require.NotNil(t, src.fn)
	src.fn(message(pushchannel.Frame{Type: FrameSystem, Message: "hello"}))
	assert.Equal(t, 1, store.Len())

	detach()
	assert.Nil(t, src.fn)
}
