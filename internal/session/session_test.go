package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/pushchannel"
	"github.com/saravenpi/relay/internal/storage"
	"github.com/saravenpi/relay/internal/synchronizer"
	"github.com/saravenpi/relay/internal/welcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store  *conversation.Store
	status *conversation.Status
	deps   Deps
}

func newFixture(wsURL string) fixture {
	store := conversation.NewStore(storage.NewSessionStorage(), logger.NewNop())
	status := conversation.NewStatus()
	return fixture{
		store:  store,
		status: status,
		deps: Deps{
			Status:       status,
			Synchronizer: synchronizer.New(store, status, "frontend-user", logger.NewNop()),
			Welcome:      welcome.NewTracker(store, storage.NewSessionStorage(), logger.NewNop()),
			Channel: pushchannel.Options{
				URL:                  wsURL,
				ReconnectInterval:    time.Hour,
				MaxReconnectAttempts: 5,
			},
		},
	}
}

func pushServer(t *testing.T, frames ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return pushchannel.ChatURL("ws"+strings.TrimPrefix(server.URL, "http"), "frontend-user")
}

func TestSession_OpenWelcomesAndSyncs(t *testing.T) {
	f := newFixture(pushServer(t, `{"type":"system_message","message":"hello"}`))

	s := Open(context.Background(), f.deps, models.ModeChat)
	defer s.Close()

	assert.Equal(t, models.ModeChat, f.status.Mode())
	assert.Eventually(t, f.status.Connected, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return f.store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ConfigFor(models.ModeChat).WelcomeMessage, msgs[0].Content)
	assert.Equal(t, "🔔 System: hello", msgs[1].Content)
}

func TestSession_CloseLeavesNothingRunning(t *testing.T) {
	f := newFixture(pushServer(t))

	s := Open(context.Background(), f.deps, models.ModeStore)
	require.Eventually(t, f.status.Connected, 2*time.Second, 10*time.Millisecond)

	s.Close()
	s.Close()

	assert.False(t, f.status.Connected())
	assert.Equal(t, models.ModeNone, f.status.Mode())
	assert.Equal(t, pushchannel.StateClosed, s.Channel().State())
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	f := newFixture("ws://127.0.0.1:1/ws/chat?userId=frontend-user")

	s := Open(context.Background(), f.deps, models.ModeWhatsApp)
	assert.Equal(t, pushchannel.StateClosed, s.Channel().State())
	assert.Equal(t, 1, s.Channel().Attempts())

	s.Close()
	assert.False(t, f.status.Connected())
}

func TestSession_ReopenDoesNotWelcomeTwice(t *testing.T) {
	f := newFixture("ws://127.0.0.1:1/ws/chat?userId=frontend-user")

	Open(context.Background(), f.deps, models.ModeChat).Close()
	Open(context.Background(), f.deps, models.ModeChat).Close()

	assert.Equal(t, 1, f.store.Len())
}

func TestSession_ClosingAReplacedSessionKeepsTheNewOnesFlags(t *testing.T) {
	f := newFixture(pushServer(t))

	stale := Open(context.Background(), f.deps, models.ModeChat)
	live := Open(context.Background(), f.deps, models.ModeChat)
	defer live.Close()
	require.Eventually(t, f.status.Connected, 2*time.Second, 10*time.Millisecond)

	stale.Close()

	assert.Equal(t, pushchannel.StateClosed, stale.Channel().State())
	assert.Equal(t, pushchannel.StateOpen, live.Channel().State())
	assert.True(t, f.status.Connected())
	assert.Equal(t, models.ModeChat, f.status.Mode())

	live.Close()
	assert.False(t, f.status.Connected())
	assert.Equal(t, models.ModeNone, f.status.Mode())
}
