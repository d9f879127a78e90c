package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
)

const timeLayout = "2006-01-02 15:04"

// RenderConversations draws a conversation list as a table.
func RenderConversations(list []conversation.Conversation) string {
	if len(list) == 0 {
		return DefaultStyles().Hint.Render("no conversations")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "TITLE", "AGE", "ARCHIVED", "UPDATED")
	for _, c := range list {
		age := "-"
		if c.AgeContext != nil {
			age = strconv.Itoa(*c.AgeContext)
		}
		archived := ""
		if c.IsArchived {
			archived = "yes"
		}
		t.Row(c.ID, c.Title, age, archived, c.UpdatedAt.Local().Format(timeLayout))
	}
	return t.Render()
}

// RenderConversation draws the messages of a conversation with their version position.
func RenderConversation(conv *conversation.Conversation) string {
	styles := DefaultStyles()
	var b strings.Builder
	age := "unset"
	if conv.AgeContext != nil {
		age = strconv.Itoa(*conv.AgeContext)
	}
	fmt.Fprintf(&b, "%s %s\n", styles.Question.Render(conv.Title), styles.Hint.Render(fmt.Sprintf("(%s, age %s)", conv.ID, age)))
	if len(conv.Messages) == 0 {
		b.WriteString(styles.Hint.Render("no messages yet"))
		b.WriteString("\n")
		return b.String()
	}
	for _, m := range conv.Messages {
		speaker := styles.Info.Render("you")
		if m.Role == conversation.RoleBot {
			speaker = styles.Route.Render("bot")
		}
		meta := []string{m.ID}
		if m.TotalVersions() > 1 {
			meta = append(meta, fmt.Sprintf("version %d/%d", m.CurrentVersion, m.TotalVersions()))
		}
		if m.IsEdited {
			meta = append(meta, "edited")
		}
		if m.IsRegenerating {
			meta = append(meta, "regenerating")
		}
		fmt.Fprintf(&b, "%s %s\n  %s\n", speaker, styles.Hint.Render("["+strings.Join(meta, ", ")+"]"), m.Content)
		for _, src := range m.Sources {
			fmt.Fprintf(&b, "  %s\n", styles.Hint.Render("source: "+src.Title))
		}
	}
	return b.String()
}
