package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"agentloop/agent"
	"agentloop/config"
	"agentloop/conversation"
	"agentloop/model"
	"agentloop/storage"
	"agentloop/stream"
)

// displayMessage is one transcript entry the chat view shows. Tool
// cycles stay out of the transcript; only user text and final answers
// appear.
type displayMessage struct {
	Role      string
	Content   string
	Rendered  string
	Timestamp time.Time
}

type snapshotMsg struct {
	snapshot model.StreamSnapshot
}

type streamClosedMsg struct {
	err error
}

type sessionSavedMsg struct {
	err error
}

// ChatView is the single-screen chat front-end. It owns the
// conversation store for the active session and drives the executor
// one streamed turn at a time.
type ChatView struct {
	cfg      *config.Config
	executor *agent.Executor
	conv     *conversation.Store
	sessions *storage.SessionStorage
	session  *storage.Session
	keys     *config.KeyBindingsConfig
	provider model.Provider

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	loading  spinner.Model

	// Window state
	width  int
	height int
	ready  bool

	// Streaming state
	streaming bool
	bridge    *stream.Bridge
	partial   string

	messages []displayMessage
	errLine  string
	flash    string
}

// NewChatView builds the chat model around an executor and the session
// to resume (pass a fresh session to start clean).
func NewChatView(cfg *config.Config, executor *agent.Executor, prov model.Provider, sessions *storage.SessionStorage, session *storage.Session, keys *config.KeyBindingsConfig) *ChatView {
	ta := textarea.New()
	ta.Placeholder = "Ask anything. Enter sends, alt+enter inserts a newline."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	view := &ChatView{
		cfg:      cfg,
		executor: executor,
		provider: prov,
		sessions: sessions,
		session:  session,
		keys:     keys,
		textarea: ta,
		loading:  sp,
	}
	view.restoreSession()
	return view
}

// restoreSession rebuilds the conversation store and transcript from
// the persisted session.
func (c *ChatView) restoreSession() {
	c.conv = conversation.New()
	c.messages = nil

	restored := c.session.ModelMessages()
	if len(restored) == 0 && c.cfg.DefaultSystemPrompt != "" {
		restored = []model.Message{{
			Role:      model.RoleSystem,
			Content:   c.cfg.DefaultSystemPrompt,
			Timestamp: time.Now(),
		}}
	}

	for _, msg := range restored {
		if err := c.conv.Append(msg); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] Skipping out-of-order persisted message: %v", err)
			}
			continue
		}
		switch msg.Role {
		case model.RoleUser:
			c.messages = append(c.messages, displayMessage{Role: msg.Role, Content: msg.Content, Rendered: msg.Rendered, Timestamp: msg.Timestamp})
		case model.RoleAssistant:
			// Tool-call announcements have no text to show.
			if msg.Content != "" {
				c.messages = append(c.messages, displayMessage{Role: msg.Role, Content: msg.Content, Rendered: msg.Rendered, Timestamp: msg.Timestamp})
			}
		}
	}
}

func (c *ChatView) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, c.loading.Tick)
}

// waitForSnapshot blocks on the bridge until the next increment.
func waitForSnapshot(bridge *stream.Bridge) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-bridge.Snapshots()
		if !ok {
			return streamClosedMsg{err: bridge.Err()}
		}
		return snapshotMsg{snapshot: snapshot}
	}
}

// saveSession persists the full conversation (tool cycles included).
func (c *ChatView) saveSession() tea.Cmd {
	c.session.SetMessages(c.conv.Snapshot())
	if c.session.Name == "" {
		for _, msg := range c.session.Messages {
			if msg.Role == model.RoleUser {
				c.session.Name = storage.GenerateSessionName(msg.Content)
				break
			}
		}
	}
	c.session.Provider = c.provider.GetDisplayName()
	c.session.Model = c.provider.GetModel()

	session := c.session
	store := c.sessions
	return func() tea.Msg {
		if err := store.Save(session); err != nil {
			return sessionSavedMsg{err: err}
		}
		if err := store.SaveCurrentSessionID(session.ID); err != nil {
			return sessionSavedMsg{err: err}
		}
		return sessionSavedMsg{}
	}
}

func (c *ChatView) sendMessage() tea.Cmd {
	text := strings.TrimSpace(c.textarea.Value())
	if text == "" || c.streaming {
		return nil
	}

	userMsg := model.Message{Role: model.RoleUser, Content: text, Timestamp: time.Now()}
	if err := c.conv.Append(userMsg); err != nil {
		c.errLine = err.Error()
		return nil
	}
	c.messages = append(c.messages, displayMessage{Role: model.RoleUser, Content: text, Timestamp: userMsg.Timestamp})
	c.textarea.Reset()
	c.errLine = ""

	bridge, err := c.executor.StreamTurn(context.Background(), c.conv)
	if err != nil {
		c.errLine = err.Error()
		return nil
	}

	c.bridge = bridge
	c.streaming = true
	c.partial = ""
	c.updateViewportContent(true)

	return tea.Batch(waitForSnapshot(bridge), c.loading.Tick)
}

// finishStream lands the completed (or failed) turn in the transcript.
func (c *ChatView) finishStream(err error) tea.Cmd {
	c.streaming = false
	text := ""
	if c.bridge != nil {
		text = c.bridge.Text()
	}
	c.bridge = nil
	c.partial = ""

	var cmds []tea.Cmd

	switch {
	case err == nil:
		c.messages = append(c.messages, displayMessage{
			Role:      model.RoleAssistant,
			Content:   text,
			Timestamp: time.Now(),
		})
		cmds = append(cmds, renderMarkdownCmd(len(c.messages)-1, text, c.width))
		cmds = append(cmds, c.saveSession())
	case errors.Is(err, context.Canceled), errors.Is(err, agent.ErrCancelled):
		if text != "" {
			c.messages = append(c.messages, displayMessage{
				Role:      model.RoleAssistant,
				Content:   text,
				Timestamp: time.Now(),
			})
		}
		c.errLine = "cancelled"
		cmds = append(cmds, c.saveSession())
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		c.errLine = fmt.Sprintf("turn aborted: %v", err)
		cmds = append(cmds, c.saveSession())
	default:
		c.errLine = err.Error()
	}

	c.updateViewportContent(true)
	return tea.Batch(cmds...)
}

func (c *ChatView) newSession() {
	if c.streaming {
		return
	}
	c.session = &storage.Session{}
	c.restoreSession()
	c.errLine = ""
	c.flash = "new session"
	c.updateViewportContent(true)
}

func (c *ChatView) yankLastResponse() {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == model.RoleAssistant {
			if err := clipboard.WriteAll(c.messages[i].Content); err != nil {
				c.errLine = fmt.Sprintf("clipboard: %v", err)
				return
			}
			c.flash = "copied last answer"
			return
		}
	}
}

// runSearch handles the "/search <query>" input command by appending a
// ranked result list to the transcript.
func (c *ChatView) runSearch(query string) {
	matches := storage.SearchMessages(c.session.Messages, query)

	var b strings.Builder
	switch {
	case len(matches) == 0:
		fmt.Fprintf(&b, "No matches for %q.", query)
	default:
		fmt.Fprintf(&b, "Matches for %q:\n", query)
		for i, match := range matches {
			if i >= 10 {
				fmt.Fprintf(&b, "… and %d more", len(matches)-10)
				break
			}
			fmt.Fprintf(&b, "  [%d] %s: %s\n", match.MessageIndex, match.Role, match.Preview)
		}
	}

	c.messages = append(c.messages, displayMessage{
		Role:      model.RoleSystem,
		Content:   b.String(),
		Timestamp: time.Now(),
	})
	c.textarea.Reset()
	c.updateViewportContent(true)
}

// runGlobalSearch handles "/grep <query>", which searches every stored
// session rather than just the open one.
func (c *ChatView) runGlobalSearch(query string) {
	matches, err := storage.NewSearchIndex(c.sessions).SearchAllSessions(query)
	if err != nil {
		c.errLine = err.Error()
		return
	}

	var b strings.Builder
	switch {
	case len(matches) == 0:
		fmt.Fprintf(&b, "No matches for %q in any session.", query)
	default:
		fmt.Fprintf(&b, "Matches for %q across sessions:\n", query)
		for i, match := range matches {
			if i >= 10 {
				fmt.Fprintf(&b, "… and %d more", len(matches)-10)
				break
			}
			fmt.Fprintf(&b, "  %s [%d] %s: %s\n", match.SessionName, match.MessageIndex, match.Role, match.Preview)
		}
	}

	c.messages = append(c.messages, displayMessage{
		Role:      model.RoleSystem,
		Content:   b.String(),
		Timestamp: time.Now(),
	})
	c.textarea.Reset()
	c.updateViewportContent(true)
}

// runProviderUpdate handles "/provider <id> <field> <value>", e.g.
// "/provider anthropic apikey sk-..." or "/provider ollama host http://...".
func (c *ChatView) runProviderUpdate(args string) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		c.errLine = "usage: /provider <id> <field> <value>"
		return
	}

	if err := config.UpdateProviderField(c.cfg.DataDir(), parts[0], parts[1], parts[2]); err != nil {
		c.errLine = err.Error()
		return
	}

	c.textarea.Reset()
	c.errLine = ""
	c.flash = fmt.Sprintf("updated %s %s (restart to apply)", parts[0], parts[1])
}

// runRename handles "/rename <new name>" for the current session.
func (c *ChatView) runRename(name string) {
	if name == "" {
		c.errLine = "usage: /rename <new name>"
		return
	}
	if c.session.ID == "" {
		c.errLine = "nothing to rename yet - send a message first"
		return
	}

	if err := c.sessions.RenameSession(c.session.ID, name); err != nil {
		c.errLine = err.Error()
		return
	}
	c.session.Name = name
	c.textarea.Reset()
	c.errLine = ""
	c.flash = fmt.Sprintf("renamed session to %q", name)
}

// runExport handles "/export [path]". Without a path the session lands in
// the Downloads directory under a timestamped name.
func (c *ChatView) runExport(path string) {
	if c.session.ID == "" {
		c.errLine = "nothing to export yet - send a message first"
		return
	}
	if path == "" {
		path = storage.GenerateExportPath(c.session.Name)
	}

	if err := c.sessions.ExportToJSON(c.session.ID, path); err != nil {
		c.errLine = err.Error()
		return
	}
	c.textarea.Reset()
	c.errLine = ""
	c.flash = "exported to " + path
}

func (c *ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.layout()
		c.ready = true
		// Re-render cached markdown at the new width.
		for i, m := range c.messages {
			if m.Role == model.RoleAssistant {
				cmds = append(cmds, renderMarkdownCmd(i, m.Content, c.width))
			}
		}
		c.updateViewportContent(false)
		return c, tea.Batch(cmds...)

	case tea.KeyMsg:
		if cmd, handled := c.handleKey(msg); handled {
			return c, cmd
		}

	case snapshotMsg:
		c.partial = msg.snapshot.CumulativeText
		c.updateViewportContent(true)
		// Keep listening through the final Done snapshot; the channel
		// close delivers streamClosedMsg.
		if c.bridge != nil {
			return c, waitForSnapshot(c.bridge)
		}
		return c, nil

	case streamClosedMsg:
		return c, c.finishStream(msg.err)

	case markdownRenderedMsg:
		if msg.MessageIndex < len(c.messages) {
			c.messages[msg.MessageIndex].Rendered = msg.Rendered
			c.updateViewportContent(true)
		}
		return c, nil

	case sessionSavedMsg:
		if msg.err != nil {
			c.errLine = fmt.Sprintf("save failed: %v", msg.err)
		}
		return c, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		c.loading, cmd = c.loading.Update(msg)
		if c.streaming {
			c.updateViewportContent(false)
		}
		return c, cmd
	}

	var cmd tea.Cmd
	c.textarea, cmd = c.textarea.Update(msg)
	cmds = append(cmds, cmd)
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// handleKey routes one key press. Returns handled=false for keys the
// focused components should see.
func (c *ChatView) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	c.flash = ""

	switch key {
	case "ctrl+c", c.keys.GetActionKey("quit"):
		if c.bridge != nil {
			c.bridge.Cancel()
		}
		return tea.Quit, true

	case "esc":
		if c.streaming && c.bridge != nil {
			c.bridge.Cancel()
			return nil, true
		}
		return nil, true

	case "enter":
		value := strings.TrimSpace(c.textarea.Value())
		if after, ok := strings.CutPrefix(value, "/search "); ok {
			c.runSearch(strings.TrimSpace(after))
			return nil, true
		}
		if after, ok := strings.CutPrefix(value, "/grep "); ok {
			c.runGlobalSearch(strings.TrimSpace(after))
			return nil, true
		}
		if after, ok := strings.CutPrefix(value, "/provider "); ok {
			c.runProviderUpdate(after)
			return nil, true
		}
		if after, ok := strings.CutPrefix(value, "/rename "); ok {
			c.runRename(strings.TrimSpace(after))
			return nil, true
		}
		if value == "/export" || strings.HasPrefix(value, "/export ") {
			c.runExport(strings.TrimSpace(strings.TrimPrefix(value, "/export")))
			return nil, true
		}
		return c.sendMessage(), true

	case "alt+enter":
		c.textarea.InsertString("\n")
		return nil, true

	case c.keys.GetActionKey("new_session"):
		c.newSession()
		return nil, true

	case c.keys.GetActionKey("yank_last_response"):
		c.yankLastResponse()
		return nil, true

	case c.keys.GetActionKey("clear_input"):
		c.textarea.Reset()
		return nil, true

	case c.keys.GetActionKey("scroll_down"):
		c.viewport.ScrollDown(1)
		return nil, true

	case c.keys.GetActionKey("scroll_up"):
		c.viewport.ScrollUp(1)
		return nil, true

	case c.keys.GetActionKey("half_page_down"):
		c.viewport.HalfPageDown()
		return nil, true

	case c.keys.GetActionKey("half_page_up"):
		c.viewport.HalfPageUp()
		return nil, true

	case c.keys.GetActionKey("page_down"):
		c.viewport.PageDown()
		return nil, true

	case c.keys.GetActionKey("page_up"):
		c.viewport.PageUp()
		return nil, true

	case c.keys.GetActionKey("scroll_to_top"):
		c.viewport.GotoTop()
		return nil, true

	case c.keys.GetActionKey("scroll_to_bottom"):
		c.viewport.GotoBottom()
		return nil, true
	}

	return nil, false
}

// Run starts the chat program and blocks until the user quits.
func Run(view *ChatView) error {
	p := tea.NewProgram(view, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
