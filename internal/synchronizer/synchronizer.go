package synchronizer

import (
	"fmt"
	"sync"
	"time"

	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/pushchannel"
)

const module = "synchronizer"

// Push frame discriminants.
const (
	FrameWhatsApp = "whatsapp_message"
	FrameFrontend = "frontend_message"
	FrameSystem   = "system_message"
)

// responseDelay places the relayed AI answer right after the message it
// answers.
const responseDelay = time.Second

// EventSource is anything that can deliver push channel events.
type EventSource interface {
	Subscribe(fn func(pushchannel.Event)) func()
}

// Synchronizer folds push channel events into the conversation log and
// tracks the connection flag.
type Synchronizer struct {
	store  *conversation.Store
	status *conversation.Status
	userID string
	log    logger.ILogger
	now    func() time.Time

	mu        sync.Mutex
	observers []func(bool)
}

func New(store *conversation.Store, status *conversation.Status, userID string, log logger.ILogger) *Synchronizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Synchronizer{
		store:  store,
		status: status,
		userID: userID,
		log:    log,
		now:    time.Now,
	}
}

// OnConnectionChange registers fn to run whenever the channel opens or
// closes.
func (s *Synchronizer) OnConnectionChange(fn func(connected bool)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Attach starts consuming events from src. The returned func detaches.
// Connection changes of src only reach the status while src holds it.
func (s *Synchronizer) Attach(src EventSource) func() {
	return src.Subscribe(func(ev pushchannel.Event) {
		s.handle(src, ev)
	})
}

// Handle folds ev into the log and status regardless of who holds the
// status.
func (s *Synchronizer) Handle(ev pushchannel.Event) {
	s.handle(nil, ev)
}

func (s *Synchronizer) handle(src EventSource, ev pushchannel.Event) {
	switch ev.Kind {
	case pushchannel.EventConnected:
		s.setConnected(src, true)
	case pushchannel.EventDisconnected:
		s.setConnected(src, false)
	case pushchannel.EventMessage:
		s.handleFrame(ev.Frame)
	case pushchannel.EventError:
		s.log.Warn(module, "push channel error", map[string]interface{}{"error": fmt.Sprint(ev.Err)})
	case pushchannel.EventReconnectScheduled:
		s.log.Debug(module, "reconnect scheduled", map[string]interface{}{"attempt": ev.Attempt})
	}
}

func (s *Synchronizer) setConnected(src EventSource, connected bool) {
	if src == nil {
		s.status.SetConnected(connected)
	} else if !s.status.SetConnectedFor(src, connected) {
		s.log.Debug(module, "ignoring connection change of a replaced channel", map[string]interface{}{"connected": connected})
		return
	}

	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()
	for _, fn := range observers {
		fn(connected)
	}
}

func (s *Synchronizer) handleFrame(f pushchannel.Frame) {
	at := f.Time()
	if at.IsZero() {
		at = s.now()
	}

	switch f.Type {
	case FrameWhatsApp:
		s.store.Append(models.Message{
			Type:      models.MessageBot,
			Mode:      models.ModeWhatsApp,
			Content:   "📱 WhatsApp: " + f.Message,
			Timestamp: at,
			Source:    models.SourceWhatsApp,
		})
		s.store.Append(models.Message{
			Type:      models.MessageBot,
			Mode:      models.ModeWhatsApp,
			Content:   f.Response,
			Timestamp: at.Add(responseDelay),
			Source:    models.SourceWhatsApp,
		})

	case FrameFrontend:
		if f.UserID == s.userID {
			return
		}
		s.store.Append(models.Message{
			Type:      models.MessageBot,
			Content:   "👤 Other user: " + f.Message,
			Timestamp: at,
			Source:    models.SourceSync,
		})

	case FrameSystem:
		s.store.Append(models.Message{
			Type:      models.MessageBot,
			Content:   "🔔 System: " + f.Message,
			Timestamp: at,
			Source:    models.SourceSystem,
		})

	default:
		s.log.Debug(module, "ignoring unknown frame", map[string]interface{}{"type": f.Type})
	}
}
