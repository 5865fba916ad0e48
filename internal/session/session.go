package session

import (
	"context"
	"sync"

	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/pushchannel"
	"github.com/saravenpi/relay/internal/synchronizer"
	"github.com/saravenpi/relay/internal/welcome"
)

const module = "session"

type Deps struct {
	Status       *conversation.Status
	Synchronizer *synchronizer.Synchronizer
	Welcome      *welcome.Tracker
	Channel      pushchannel.Options
	Log          logger.ILogger
}

// Session is one open conversation screen. It owns exactly one push channel
// for its lifetime.
type Session struct {
	mode    models.Mode
	channel *pushchannel.Channel
	status  *conversation.Status
	log     logger.ILogger

	once   sync.Once
	detach func()
}

// Open selects mode, greets it if this is the first visit in the session and
// connects the push channel. A failed first connect is not an error: the
// channel keeps retrying and the status shows it as disconnected.
func Open(ctx context.Context, deps Deps, mode models.Mode) *Session {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Channel.Logger == nil {
		deps.Channel.Logger = log
	}

	s := &Session{
		mode:    mode,
		channel: pushchannel.New(deps.Channel),
		status:  deps.Status,
		log:     log,
	}

	s.status.Claim(s.channel, mode)
	if deps.Welcome != nil {
		deps.Welcome.EnsureWelcomed(mode)
	}
	s.detach = deps.Synchronizer.Attach(s.channel)

	if err := s.channel.Connect(ctx); err != nil {
		log.Warn(module, "push channel unavailable", map[string]interface{}{"mode": string(mode), "error": err.Error()})
	}
	return s
}

func (s *Session) Mode() models.Mode {
	return s.mode
}

func (s *Session) Channel() *pushchannel.Channel {
	return s.channel
}

// Close tears the session down. When it returns no timer or goroutine of the
// session is left. The shared mode and connection flags are reset only if no
// newer session has claimed them. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.detach()
		s.channel.Disconnect()
		released := s.status.Release(s.channel)
		s.log.Debug(module, "session closed", map[string]interface{}{"mode": string(s.mode), "released": released})
	})
}
