package models

import "time"

type MessageType string

const (
	MessageUser MessageType = "user"
	MessageBot  MessageType = "bot"
)

type Mode string

const (
	ModeNone     Mode = ""
	ModeChat     Mode = "chat"
	ModeStore    Mode = "store"
	ModeWhatsApp Mode = "whatsapp"
)

// Modes lists the selectable modes in menu order.
var Modes = []Mode{ModeChat, ModeStore, ModeWhatsApp}

// ParseMode accepts a mode name as typed on the command line.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeChat, ModeStore, ModeWhatsApp:
		return Mode(s), true
	}
	return ModeNone, false
}

type Source string

const (
	SourceNone     Source = ""
	SourceWhatsApp Source = "whatsapp"
	SourceSync     Source = "sync"
	SourceSystem   Source = "system"
)

type Message struct {
	ID           string      `json:"id"`
	Type         MessageType `json:"type"`
	Mode         Mode        `json:"mode,omitempty"`
	Content      string      `json:"content"`
	Timestamp    time.Time   `json:"timestamp"`
	Documents    []Document  `json:"documents,omitempty"`
	HasDocuments bool        `json:"hasDocuments,omitempty"`
	Source       Source      `json:"source,omitempty"`
}

type Document struct {
	ID         int64   `json:"id"`
	FileName   string  `json:"fileName,omitempty"`
	FileType   string  `json:"fileType,omitempty"`
	FilePath   string  `json:"filePath,omitempty"`
	Content    string  `json:"content,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	HasFile    bool    `json:"hasFile"`
}

type ModeConfig struct {
	Title          string
	Icon           string
	Placeholder    string
	WelcomeMessage string
}

var defaultModeConfig = ModeConfig{
	Title:          "AI Assistant",
	Icon:           "🤖",
	Placeholder:    "Type your message...",
	WelcomeMessage: "Hello! How can I help you today?",
}

var modeConfigs = map[Mode]ModeConfig{
	ModeChat: {
		Title:          "Chat with AI",
		Icon:           "🤖",
		Placeholder:    "Ask me anything...",
		WelcomeMessage: "🤖 Hello! I'm your AI assistant. Ask me anything and I'll help you with intelligent responses.",
	},
	ModeStore: {
		Title:          "Store Knowledge",
		Icon:           "📚",
		Placeholder:    "Type text or upload a file...",
		WelcomeMessage: "📚 Knowledge storage mode activated! Send me text or upload documents to store in your knowledge base.",
	},
	ModeWhatsApp: {
		Title:          "WhatsApp Sync",
		Icon:           "📱",
		Placeholder:    "Type a message to sync with WhatsApp...",
		WelcomeMessage: "📱 WhatsApp sync mode! Your messages here will be synced with WhatsApp. Start chatting!",
	},
}

// ConfigFor returns the presets for a mode, falling back to the generic
// assistant presets for unknown modes.
func ConfigFor(mode Mode) ModeConfig {
	if cfg, ok := modeConfigs[mode]; ok {
		return cfg
	}
	return defaultModeConfig
}
