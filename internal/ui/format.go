package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/models"
)

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	}
	if duration < 2*time.Minute {
		return "1 min ago"
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	}
	if duration < 2*time.Hour {
		return "1h ago"
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	}
	if duration < 48*time.Hour {
		return "yesterday"
	}
	if duration < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	}
	return t.Format("Jan 2")
}

func senderLabel(msg models.Message, mode models.Mode) string {
	if msg.Type == models.MessageUser {
		return "You"
	}
	switch msg.Source {
	case models.SourceWhatsApp:
		return "WhatsApp"
	case models.SourceSync:
		return "Sync"
	case models.SourceSystem:
		return "System"
	}
	return models.ConfigFor(mode).Title
}

func bodyStyle(msg models.Message) lipgloss.Style {
	if msg.Type == models.MessageUser {
		return userMessageStyle
	}
	switch msg.Source {
	case models.SourceWhatsApp, models.SourceSync:
		return relayedMessageStyle
	case models.SourceSystem:
		return systemMessageStyle
	}
	return botMessageStyle
}

// renderMessages lays out a conversation: user messages on the right, every
// other message on the left with its documents underneath.
func renderMessages(msgs []models.Message, mode models.Mode, width int) string {
	if width <= 0 {
		width = 80
	}
	right := lipgloss.NewStyle().Align(lipgloss.Right).Width(width)

	var content strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			content.WriteString("\n")
		}

		header := messageHeaderStyle.Render(fmt.Sprintf("%s • %s", senderLabel(msg, mode), msg.Timestamp.Format("3:04 PM")))
		body := bodyStyle(msg).Render(wordwrap.String(msg.Content, width-10))

		if msg.Type == models.MessageUser {
			content.WriteString(right.Render(header) + "\n")
			content.WriteString(right.Render(body) + "\n")
			continue
		}

		content.WriteString(header + "\n")
		content.WriteString(body + "\n")
		if msg.HasDocuments {
			content.WriteString(renderDocuments(msg.Documents, width-4) + "\n")
		}
	}
	return content.String()
}

func documentIcon(doc models.Document) string {
	switch doc.Kind() {
	case "image":
		return "🖼"
	case "pdf":
		return "📕"
	case "spreadsheet":
		return "📊"
	}
	return "📄"
}

func renderDocuments(docs []models.Document, width int) string {
	unique := models.UniqueDocuments(docs)
	if len(unique) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(inputStyle.Render(fmt.Sprintf("📎 %d related document(s)", len(unique))))
	for _, doc := range unique {
		name := doc.FileName
		if name == "" {
			name = fmt.Sprintf("document %d", doc.ID)
		}
		line := fmt.Sprintf("%s %s", documentIcon(doc), name)
		if sim := doc.FormatSimilarity(); sim != "" {
			line += " · " + sim + " match"
		}
		if doc.HasFile {
			line += fmt.Sprintf(" · id %d", doc.ID)
		}
		b.WriteString("\n" + truncate.StringWithTail(line, uint(max(width-4, 10)), "…"))
		if preview := doc.Preview(); preview != "" {
			b.WriteString("\n" + documentStyle.Render(wordwrap.String(preview, max(width-8, 10))))
		}
	}
	return documentBoxStyle.Render(b.String())
}

// lastActivity returns the newest message of mode, if any.
func lastActivity(store *conversation.Store, mode models.Mode) (models.Message, bool) {
	var last models.Message
	found := false
	for msg := range store.List(mode) {
		last, found = msg, true
	}
	return last, found
}
