package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
)

const (
	inputHeight  = 3
	chromeHeight = 1 + 1 + inputHeight + 1 + 1 // title, separator, input, status, notice
)

// layout sizes the viewport and textarea to the current window.
func (c *ChatView) layout() {
	vpHeight := c.height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !c.ready {
		c.viewport = viewport.New(c.width, vpHeight)
	} else {
		c.viewport.Width = c.width
		c.viewport.Height = vpHeight
	}

	c.textarea.SetWidth(c.width)
	c.textarea.SetHeight(inputHeight)
}

// updateViewportContent rebuilds the transcript in the viewport.
func (c *ChatView) updateViewportContent(gotoBottom bool) {
	if len(c.messages) == 0 && !c.streaming {
		c.viewport.SetContent("No messages yet. Start chatting!")
		return
	}

	var content strings.Builder

	for _, msg := range c.messages {
		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		rendered := msg.Rendered
		if rendered == "" {
			rendered = msg.Content
		}

		switch msg.Role {
		case "user":
			content.WriteString(formatUserMessage(timestamp, UserStyle.Render("You"), rendered))
		case "assistant":
			content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), rendered))
		default:
			content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, DimStyle.Render("System"), rendered))
		}
	}

	if c.streaming {
		timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
		role := AssistantStyle.Render("Assistant")

		// Spinner until the first delta arrives, then text with cursor.
		streamContent := c.loading.View()
		if c.partial != "" {
			streamContent = c.partial + "▋"
		}

		content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, role, streamContent))
	}

	c.viewport.SetContent(content.String())
	if gotoBottom {
		c.viewport.GotoBottom()
	}
}

// formatUserMessage prefixes each line of a user message with a green
// vertical bar.
func formatUserMessage(timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

func (c *ChatView) View() string {
	if !c.ready {
		return "Loading..."
	}

	// Title bar - "agentloop - Provider (model) - Session Name"
	appText := AssistantStyle.Render("agentloop")
	modelText := TitleStyle.Render(fmt.Sprintf(" - %s (%s)", c.provider.GetDisplayName(), c.provider.GetModel()))

	sessionName := "New Session"
	if c.session.Name != "" {
		sessionName = c.session.Name
	}
	// Keep the title on one line even for long session names.
	used := runewidth.StringWidth(stripANSI(appText + modelText))
	avail := c.width - used - 3
	if avail > 4 && runewidth.StringWidth(sessionName) > avail {
		sessionName = runewidth.Truncate(sessionName, avail, "…")
	}
	title := appText + modelText + UserStyle.Render(fmt.Sprintf(" - %s", sessionName))

	statusBar := StatusStyle.Render(FormatFooter(
		"Enter", "Send",
		"Esc", "Cancel",
		c.keys.DisplayActionKey("new_session"), "New",
		c.keys.DisplayActionKey("yank_last_response"), "Copy",
		c.keys.DisplayActionKey("quit"), "Quit",
	))

	notice := ""
	switch {
	case c.errLine != "":
		notice = ErrorStyle.Render(c.errLine)
	case c.flash != "":
		notice = HelpStyle.Render(c.flash)
	case c.streaming:
		notice = HelpStyle.Render(c.loading.View() + " thinking…")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		c.viewport.View(),
		c.textarea.View(),
		statusBar,
		notice,
	)
}
