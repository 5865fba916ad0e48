package welcome

import (
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/storage"
)

const module = "welcome"

// Tracker greets each mode once per session.
type Tracker struct {
	store   *conversation.Store
	session storage.Storage
	log     logger.ILogger
}

func NewTracker(store *conversation.Store, session storage.Storage, log logger.ILogger) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tracker{store: store, session: session, log: log}
}

func Key(mode models.Mode) string {
	return "welcomed-" + string(mode)
}

// EnsureWelcomed appends the mode's welcome message unless this session has
// already seen it. It reports whether a message was appended.
func (t *Tracker) EnsureWelcomed(mode models.Mode) bool {
	key := Key(mode)
	value, _, err := t.session.Get(key)
	if err != nil {
		t.log.Warn(module, "failed to read welcome marker", map[string]interface{}{"mode": string(mode), "error": err.Error()})
	}
	if value == "1" {
		return false
	}

	t.store.Append(models.Message{
		Type:    models.MessageBot,
		Mode:    mode,
		Content: models.ConfigFor(mode).WelcomeMessage,
	})

	if err := t.session.Set(key, "1"); err != nil {
		t.log.Warn(module, "failed to set welcome marker", map[string]interface{}{"mode": string(mode), "error": err.Error()})
	}
	return true
}
