package ui

import (
	"regexp"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"agentloop/config"
)

// Pre-compiled regex patterns for better performance
var (
	mdLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	ansiRegex   = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

type markdownRenderedMsg struct {
	MessageIndex int
	Rendered     string
}

// renderMarkdown renders one answer for terminal display.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	// Preprocess: strip markdown link syntax [text](url) -> url so
	// terminal emulators handle URL detection and clickability.
	content = preprocessLinks(content)

	// Disable autolink extension to keep plain URLs as plain text.
	defaultExt := markdown.Extensions()
	customExt := defaultExt &^ parser.Autolink
	p := parser.NewWithExtensions(customExt)
	r := markdown.NewRenderer(width-4, 0)
	doc := p.Parse([]byte(content))
	return string(gomarkdown.Render(doc, r))
}

// renderMarkdownCmd renders asynchronously; long answers shouldn't
// block the event loop.
func renderMarkdownCmd(messageIndex int, content string, width int) tea.Cmd {
	return func() tea.Msg {
		startTime := time.Now()
		rendered := renderMarkdown(content, width)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Markdown rendered for message %d in %v", messageIndex, time.Since(startTime))
		}
		return markdownRenderedMsg{
			MessageIndex: messageIndex,
			Rendered:     rendered,
		}
	}
}

// preprocessLinks replaces [text](url) with the bare url.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// stripANSI removes ANSI escape codes for accurate length calculation
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
