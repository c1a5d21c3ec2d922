package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agentloop/model"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// ToolCall mirrors model.ToolCall with JSON tags for persistence.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message represents a persisted chat message. Assistant messages keep
// the tool calls they announced and tool messages keep the call id they
// answer, so a restored session replays through providers unchanged.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Rendered   string     `json:"rendered,omitempty"` // Cached markdown rendering
	Timestamp  time.Time  `json:"timestamp"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Session is one persisted conversation with its provider binding.
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Messages       []Message `json:"messages"`
	SystemPrompt   string    `json:"system_prompt,omitempty"`
	EnabledServers []string  `json:"enabled_servers,omitempty"`
}

// SessionMetadata is the listing view of a session: everything except the
// transcript.
type SessionMetadata struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
	SystemPrompt   string    `json:"system_prompt,omitempty"`
	EnabledServers []string  `json:"enabled_servers,omitempty"`
}

// SessionStorage persists sessions as one JSON file each under
// <dataDir>/sessions.
type SessionStorage struct {
	sessionsDir string
}

func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &SessionStorage{sessionsDir: sessionsDir}, nil
}

func (ss *SessionStorage) sessionPath(id string) string {
	return filepath.Join(ss.sessionsDir, id+".json")
}

func (ss *SessionStorage) dataDir() string {
	return filepath.Dir(ss.sessionsDir)
}

// Save writes the session to disk, assigning an ID on first save and
// stamping the timestamps. Session files are user-only; transcripts are
// sensitive.
func (ss *SessionStorage) Save(session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(ss.sessionPath(session.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (ss *SessionStorage) Load(id string) (*Session, error) {
	data, err := os.ReadFile(ss.sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns metadata for every readable session, newest first. Files
// that fail to parse are skipped so one corrupt session cannot hide the
// rest.
func (ss *SessionStorage) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(ss.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []SessionMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(ss.sessionsDir, entry.Name()))
		if err != nil {
			continue
		}
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}

		sessions = append(sessions, SessionMetadata{
			ID:             session.ID,
			Name:           session.Name,
			Provider:       session.Provider,
			Model:          session.Model,
			CreatedAt:      session.CreatedAt,
			UpdatedAt:      session.UpdatedAt,
			MessageCount:   len(session.Messages),
			SystemPrompt:   session.SystemPrompt,
			EnabledServers: session.EnabledServers,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (ss *SessionStorage) Delete(id string) error {
	if err := os.Remove(ss.sessionPath(id)); err != nil {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// SaveCurrentSessionID records which session to resume on next start.
func (ss *SessionStorage) SaveCurrentSessionID(id string) error {
	path := filepath.Join(ss.dataDir(), "current_session.id")
	return os.WriteFile(path, []byte(id), 0600)
}

// LoadCurrentSessionID returns the last active session's ID.
func (ss *SessionStorage) LoadCurrentSessionID() (string, error) {
	data, err := os.ReadFile(filepath.Join(ss.dataDir(), "current_session.id"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RenameSession loads, renames, and re-saves a session.
func (ss *SessionStorage) RenameSession(id, newName string) error {
	session, err := ss.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	session.Name = newName
	if err := ss.Save(session); err != nil {
		return fmt.Errorf("failed to save renamed session: %w", err)
	}
	return nil
}

// ExportToJSON writes a pretty-printed copy of a session to exportPath,
// creating parent directories as needed.
func (ss *SessionStorage) ExportToJSON(id, exportPath string) error {
	session, err := ss.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ModelMessages converts the persisted transcript into engine messages.
func (s *Session) ModelMessages() []model.Message {
	messages := make([]model.Message, 0, len(s.Messages))
	for _, msg := range s.Messages {
		m := model.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			Rendered:   msg.Rendered,
			Timestamp:  msg.Timestamp,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, model.ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		messages = append(messages, m)
	}
	return messages
}

// SetMessages replaces the persisted transcript from engine messages.
func (s *Session) SetMessages(messages []model.Message) {
	s.Messages = make([]Message, 0, len(messages))
	for _, m := range messages {
		msg := Message{
			Role:       m.Role,
			Content:    m.Content,
			Rendered:   m.Rendered,
			Timestamp:  m.Timestamp,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		s.Messages = append(s.Messages, msg)
	}
}

// EnableServer adds a server to the session's enabled set; already-enabled
// servers are left alone.
func (s *Session) EnableServer(serverID string) {
	if s.IsServerEnabled(serverID) {
		return
	}
	s.EnabledServers = append(s.EnabledServers, serverID)
}

// DisableServer removes a server from the session's enabled set.
func (s *Session) DisableServer(serverID string) {
	filtered := s.EnabledServers[:0]
	for _, id := range s.EnabledServers {
		if id != serverID {
			filtered = append(filtered, id)
		}
	}
	s.EnabledServers = filtered
}

func (s *Session) IsServerEnabled(serverID string) bool {
	for _, id := range s.EnabledServers {
		if id == serverID {
			return true
		}
	}
	return false
}

func (s *Session) GetEnabledServers() []string {
	if s.EnabledServers == nil {
		return []string{}
	}
	return s.EnabledServers
}

// SanitizeFilename maps filesystem-hostile characters to hyphens and caps
// the length, yielding "session" when nothing survives.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r':
			return '-'
		}
		return r
	}, name)
	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		return "session"
	}
	return name
}

// GenerateExportPath builds a timestamped default export path in the user's
// Downloads directory.
func GenerateExportPath(sessionName string) string {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}

	filename := fmt.Sprintf("agentloop-session-%s-%s.json",
		SanitizeFilename(sessionName), time.Now().Format("20060102-150405"))
	return filepath.Join(home, "Downloads", filename)
}

// GenerateSessionName derives a session name from the first user message,
// falling back to a timestamp when there is nothing usable.
func GenerateSessionName(firstMessage string) string {
	name := firstMessage
	if len(name) > 30 {
		name = name[:30] + "..."
	}
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return "Session " + time.Now().Format("Jan 2, 3:04 PM")
	}
	return name
}

// MessageMatch is one fuzzy search hit inside a transcript.
type MessageMatch struct {
	MessageIndex int
	Role         string
	Content      string
	Preview      string
	Timestamp    time.Time
	Score        int
}

// SearchMessages fuzzy-searches the transcript. Results come back ranked
// best match first; system messages and tool plumbing are excluded.
func SearchMessages(messages []Message, query string) []MessageMatch {
	if query == "" {
		return []MessageMatch{}
	}

	// Blank out non-searchable entries so indexes still line up.
	contents := make([]string, len(messages))
	for i, msg := range messages {
		if msg.Role == "system" || msg.Role == "tool" {
			continue
		}
		contents[i] = msg.Content
	}

	var matches []MessageMatch
	for _, result := range fuzzy.Find(query, contents) {
		msg := messages[result.Index]

		preview := msg.Content
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}

		matches = append(matches, MessageMatch{
			MessageIndex: result.Index,
			Role:         msg.Role,
			Content:      msg.Content,
			Preview:      preview,
			Timestamp:    msg.Timestamp,
			Score:        result.Score,
		})
	}
	return matches
}

// Lock files hold the owner's PID. Session locks live next to the session
// file; the instance lock sits at the data directory root and keeps a second
// copy of the app from racing the first on tool server ports.

func (ss *SessionStorage) sessionLockPath(sessionID string) string {
	return filepath.Join(ss.sessionsDir, sessionID+".lock")
}

func (ss *SessionStorage) instanceLockPath() string {
	return filepath.Join(ss.dataDir(), "agentloop.lock")
}

// LockSession marks a session as in use by this process.
func (ss *SessionStorage) LockSession(sessionID string) error {
	return writeLock(ss.sessionLockPath(sessionID))
}

// UnlockSession releases a session lock; a missing lock is not an error.
func (ss *SessionStorage) UnlockSession(sessionID string) error {
	return removeLock(ss.sessionLockPath(sessionID))
}

// CheckSessionLock reports whether another live process holds the session.
func (ss *SessionStorage) CheckSessionLock(sessionID string) (bool, error) {
	held, _, err := checkLock(ss.sessionLockPath(sessionID))
	return held, err
}

// LockInstance marks this process as the running instance.
func (ss *SessionStorage) LockInstance() error {
	return writeLock(ss.instanceLockPath())
}

// UnlockInstance releases the instance lock; a missing lock is not an error.
func (ss *SessionStorage) UnlockInstance() error {
	return removeLock(ss.instanceLockPath())
}

// CheckInstanceLock reports whether another instance is running and, if so,
// its PID.
func (ss *SessionStorage) CheckInstanceLock() (bool, int, error) {
	return checkLock(ss.instanceLockPath())
}

func writeLock(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0600)
}

func removeLock(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// checkLock reads a lock file and reports whether its owner still runs.
// Unparseable and stale locks are cleaned up and treated as unlocked.
// os.FindProcess always succeeds on Unix, so there the check trusts the
// lock; on Windows it detects dead owners.
func checkLock(path string) (bool, int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		_ = os.Remove(path)
		return false, 0, nil
	}

	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(path)
		return false, 0, nil
	}
	return true, pid, nil
}
