package conversation

import (
	"sync"

	"github.com/saravenpi/relay/internal/models"
)

// Status holds the process-wide flags next to the log: the active mode,
// whether a request is awaiting its response, whether a file upload is in
// flight and whether the push channel is connected.
type Status struct {
	mu        sync.RWMutex
	mode      models.Mode
	awaiting  bool
	uploading bool
	connected bool
	// owner is the push channel currently holding the mode and connection flags.
	owner any

	observers []func()
}

func NewStatus() *Status {
	return &Status{}
}

// OnChange registers fn to run after any flag changes value.
func (s *Status) OnChange(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Status) Mode() models.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Status) Awaiting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awaiting
}

func (s *Status) Uploading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploading
}

func (s *Status) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Status) SetMode(mode models.Mode) {
	s.set(func() bool {
		changed := s.mode != mode
		s.mode = mode
		return changed
	})
}

func (s *Status) SetAwaiting(v bool) {
	s.set(func() bool {
		changed := s.awaiting != v
		s.awaiting = v
		return changed
	})
}

func (s *Status) SetUploading(v bool) {
	s.set(func() bool {
		changed := s.uploading != v
		s.uploading = v
		return changed
	})
}

func (s *Status) SetConnected(v bool) {
	s.set(func() bool {
		changed := s.connected != v
		s.connected = v
		return changed
	})
}

// Claim makes owner the holder of the mode and connection flags. The
// connection flag starts over as disconnected.
func (s *Status) Claim(owner any, mode models.Mode) {
	s.set(func() bool {
		changed := s.mode != mode || s.connected
		s.owner = owner
		s.mode = mode
		s.connected = false
		return changed
	})
}

// Release resets the mode and connection flags if owner still holds them.
func (s *Status) Release(owner any) bool {
	released := false
	s.set(func() bool {
		if s.owner != owner {
			return false
		}
		released = true
		changed := s.mode != models.ModeNone || s.connected
		s.owner = nil
		s.mode = models.ModeNone
		s.connected = false
		return changed
	})
	return released
}

// SetConnectedFor updates the connection flag on behalf of owner. It is a
// no-op while someone else holds the flags.
func (s *Status) SetConnectedFor(owner any, v bool) bool {
	applied := false
	s.set(func() bool {
		if s.owner != nil && s.owner != owner {
			return false
		}
		applied = true
		changed := s.connected != v
		s.connected = v
		return changed
	})
	return applied
}

func (s *Status) set(apply func() bool) {
	s.mu.Lock()
	changed := apply()
	observers := s.observers
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range observers {
		fn()
	}
}
