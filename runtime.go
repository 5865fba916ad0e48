package main

import (
	"fmt"

	"github.com/saravenpi/relay/internal/api"
	"github.com/saravenpi/relay/internal/config"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/dispatcher"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/pushchannel"
	"github.com/saravenpi/relay/internal/session"
	"github.com/saravenpi/relay/internal/storage"
	"github.com/saravenpi/relay/internal/synchronizer"
	"github.com/saravenpi/relay/internal/welcome"
)

// runtime is everything a command needs, built once per process.
type runtime struct {
	cfg        *config.Config
	log        logger.ILogger
	db         *storage.SQLiteStorage
	sessionKV  *storage.SessionStorage
	store      *conversation.Store
	status     *conversation.Status
	client     *api.Client
	dispatcher *dispatcher.Dispatcher
	sync       *synchronizer.Synchronizer
	welcome    *welcome.Tracker
}

// setup loads configuration and hydrates the conversation log. Headless
// commands pass console so warnings also reach stderr.
func setup(console bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var log logger.ILogger
	if console {
		log = logger.NewConsoleLogger(cfg.LogFilePath, verbose)
	} else {
		log = logger.NewFileLogger(cfg.LogFilePath, verbose)
	}

	db, err := storage.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	store := conversation.NewStore(db, log)
	store.Hydrate()

	status := conversation.NewStatus()
	client := api.NewClient(cfg.APIBaseURL, cfg.UserID, cfg.HTTPTimeout)
	sessionKV := storage.NewSessionStorage()

	return &runtime{
		cfg:        cfg,
		log:        log,
		db:         db,
		sessionKV:  sessionKV,
		store:      store,
		status:     status,
		client:     client,
		dispatcher: dispatcher.New(store, status, client, log, cfg.MaxUploadBytes),
		sync:       synchronizer.New(store, status, cfg.UserID, log),
		welcome:    welcome.NewTracker(store, sessionKV, log),
	}, nil
}

func (r *runtime) sessionDeps() session.Deps {
	return session.Deps{
		Status:       r.status,
		Synchronizer: r.sync,
		Welcome:      r.welcome,
		Channel: pushchannel.Options{
			URL:                  pushchannel.ChatURL(r.cfg.WSBaseURL, r.cfg.UserID),
			ReconnectInterval:    r.cfg.ReconnectInterval,
			MaxReconnectAttempts: r.cfg.MaxReconnectAttempts,
		},
		Log: r.log,
	}
}

func (r *runtime) Close() {
	if err := r.db.Close(); err != nil {
		r.log.Warn("main", "failed to close local storage", map[string]interface{}{"error": err.Error()})
	}
	_ = r.log.Sync()
}
