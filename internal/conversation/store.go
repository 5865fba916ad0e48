package conversation

import (
	"encoding/json"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/storage"
)

// StorageKey is the durable key holding the serialized message log.
const StorageKey = "chat_messages"

const module = "conversation"

// Store is the ordered message log every view renders from. Messages are
// never edited after Append; the log only grows, is replaced wholesale on
// hydration, or is cleared.
type Store struct {
	// writeMu keeps durable writes in mutation order.
	writeMu   sync.Mutex
	mu        sync.Mutex
	messages  []models.Message
	observers map[int]func()
	nextObs   int

	durable storage.Storage
	log     logger.ILogger
	now     func() time.Time
}

func NewStore(durable storage.Storage, log logger.ILogger) *Store {
	return &Store{
		observers: make(map[int]func()),
		durable:   durable,
		log:       log,
		now:       time.Now,
	}
}

// NewID returns a time ordered, collision resistant message id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Hydrate loads the durable log. Missing or corrupt data leaves the store
// empty and is not an error.
func (s *Store) Hydrate() {
	if s.durable == nil {
		return
	}

	raw, ok, err := s.durable.Get(StorageKey)
	if err != nil {
		s.log.Warn(module, "failed to read saved messages", map[string]interface{}{"error": err.Error()})
		return
	}
	if !ok || raw == "" {
		return
	}

	var saved []models.Message
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		s.log.Warn(module, "ignoring corrupt saved messages", map[string]interface{}{"error": err.Error()})
		return
	}

	s.ReplaceAll(saved)
	s.log.Info(module, "hydrated messages", map[string]interface{}{"count": len(saved)})
}

// Append fills in a missing id and timestamp, adds the message to the end of
// the log and returns the stored copy.
func (s *Store) Append(msg models.Message) models.Message {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	msg.Documents = slices.Clone(msg.Documents)

	s.mutate(func(current []models.Message) []models.Message {
		return append(current, msg)
	})
	return detached(msg)
}

// detached copies the parts of msg that share memory with the log.
func detached(msg models.Message) models.Message {
	msg.Documents = slices.Clone(msg.Documents)
	return msg
}

func (s *Store) ReplaceAll(msgs []models.Message) {
	replaced := make([]models.Message, len(msgs))
	for i, msg := range msgs {
		msg.Documents = slices.Clone(msg.Documents)
		replaced[i] = msg
	}

	s.mutate(func([]models.Message) []models.Message {
		return replaced
	})
}

func (s *Store) Clear() {
	s.mutate(func([]models.Message) []models.Message {
		return nil
	})
}

func (s *Store) mutate(fn func([]models.Message) []models.Message) {
	s.writeMu.Lock()
	s.mu.Lock()
	s.messages = fn(s.messages)
	snapshot := s.messages
	s.mu.Unlock()
	s.persist(snapshot)
	s.writeMu.Unlock()

	s.notify()
}

// List is a lazy view over the log as it stood when List was called. Yielded
// messages are copies; changing them never touches the log.
// ModeNone yields every message, any other mode only messages of that mode.
func (s *Store) List(mode models.Mode) iter.Seq[models.Message] {
	s.mu.Lock()
	view := s.messages
	s.mu.Unlock()

	return func(yield func(models.Message) bool) {
		for _, msg := range view {
			if mode != models.ModeNone && msg.Mode != mode {
				continue
			}
			if !yield(detached(msg)) {
				return
			}
		}
	}
}

// Visible is what a conversation screen for mode shows: the mode's own
// messages plus unscoped ones such as system notices.
func (s *Store) Visible(mode models.Mode) []models.Message {
	var out []models.Message
	for msg := range s.List(models.ModeNone) {
		if msg.Mode == mode || msg.Mode == models.ModeNone {
			out = append(out, msg)
		}
	}
	return out
}

func (s *Store) Messages() []models.Message {
	return slices.Collect(s.List(models.ModeNone))
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Subscribe registers fn to run after every mutation, on the mutating
// goroutine. The returned func removes it.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) persist(msgs []models.Message) {
	if s.durable == nil {
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	data, err := json.Marshal(msgs)
	if err != nil {
		s.log.Error(module, "failed to encode messages", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.durable.Set(StorageKey, string(data)); err != nil {
		s.log.Error(module, "failed to save messages", map[string]interface{}{"error": err.Error()})
	}
}
