package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// KeyBindingsConfig holds the user's modifier choice plus optional
// per-action overrides from keybindings.toml.
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions"`
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // "alt", "ctrl", "meta", "super"
	Secondary string `toml:"secondary"` // e.g. "alt+shift"
}

const (
	defaultPrimary   = "alt"
	defaultSecondary = "alt+shift"
)

// actionDef is an action's default binding: which modifier tier it uses and
// the bare key.
type actionDef struct {
	modifier string // "primary", "secondary", or "none"
	key      string
}

// actionRegistry lists every bindable action with its default. The [actions]
// table in keybindings.toml overrides entries by name.
var actionRegistry = map[string]actionDef{
	"new_session": {"primary", "n"},

	"scroll_down":      {"primary", "j"},
	"scroll_up":        {"primary", "k"},
	"half_page_down":   {"secondary", "j"},
	"half_page_up":     {"secondary", "k"},
	"page_down":        {"primary", "pgdown"},
	"page_up":          {"primary", "pgup"},
	"scroll_to_top":    {"primary", "g"},
	"scroll_to_bottom": {"secondary", "g"},

	"quit":               {"primary", "q"},
	"yank_last_response": {"primary", "y"},
	"clear_input":        {"primary", "u"},
}

func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   defaultPrimary,
			Secondary: defaultSecondary,
		},
	}
}

// LoadKeybindings reads keybindings.toml from the data directory, writing
// the commented template first if the file does not exist. Invalid modifier
// combinations fall back to the defaults.
func LoadKeybindings(dataDir string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	path := filepath.Join(dataDir, "keybindings.toml")

	if !FileExists(path) {
		if err := CreateDefaultKeybindings(dataDir); err != nil {
			return nil, fmt.Errorf("failed to create keybindings: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keybindings: %w", err)
	}

	if ok, warning := cfg.Validate(); !ok {
		if Debug && DebugLog != nil {
			DebugLog.Printf("[keybindings] invalid config (%s), using defaults", warning)
		}
		cfg.Modifiers = DefaultKeybindings().Modifiers
	} else if warning != "" && Debug && DebugLog != nil {
		DebugLog.Printf("[keybindings] %s", warning)
	}

	return cfg, nil
}

// CreateDefaultKeybindings writes the template keybindings.toml unless one
// already exists.
func CreateDefaultKeybindings(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, "keybindings.toml")
	if FileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(keybindingsTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write keybindings: %w", err)
	}
	return nil
}

const keybindingsTemplate = `# agentloop keybindings
# This file uses TOML format: https://toml.io

# Modifier tiers. Change these if Alt conflicts with your window manager or
# terminal multiplexer, e.g. primary = "ctrl" for tmux users or
# primary = "super" under i3/sway.

[modifiers]
primary = "alt"
secondary = "alt+shift"

# Per-action overrides. Uncomment and set a full key string to override a
# single action, e.g.:
#
#   scroll_down = "ctrl+j"
#   scroll_up = "ctrl+k"
#   quit = "ctrl+shift+q"

[actions]
`

// Primary returns the primary modifier, defaulting when unset.
func (kb *KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return defaultPrimary
	}
	return kb.Modifiers.Primary
}

// Secondary returns the secondary modifier, defaulting when unset.
func (kb *KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return defaultSecondary
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey prefixes key with the primary modifier: "s" -> "alt+s".
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey prefixes key with the secondary modifier. Terminals report
// shifted letters as uppercase runes rather than an explicit shift, so for a
// shift-bearing modifier and a single letter this collapses "alt+shift"+"s"
// into "alt+S". Special keys like "f1" keep the explicit shift.
func (kb *KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	isLetter := len(key) == 1 && key[0] >= 'a' && key[0] <= 'z'
	if !isLetter || !strings.Contains(strings.ToLower(secondary), "shift") {
		return secondary + "+" + key
	}

	var mods []string
	for _, part := range strings.Split(secondary, "+") {
		if strings.ToLower(part) != "shift" {
			mods = append(mods, part)
		}
	}
	if len(mods) == 0 {
		return strings.ToUpper(key)
	}
	return strings.Join(mods, "+") + "+" + strings.ToUpper(key)
}

// GetActionKey resolves an action to its key string: user override first,
// then the registry default. Unknown actions yield "".
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if override, ok := kb.Actions[action]; ok && override != "" {
		return override
	}

	def, ok := actionRegistry[action]
	if !ok {
		return ""
	}
	switch def.modifier {
	case "primary":
		return kb.PrimaryKey(def.key)
	case "secondary":
		return kb.SecondaryKey(def.key)
	default:
		return def.key
	}
}

// DisplayActionKey formats an action's binding for the status bar,
// e.g. "ctrl+shift+j" -> "Ctrl+Shift+J" and "alt+J" -> "Alt+Shift+J".
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return displayKeybinding(key)
}

// PrimaryDisplay returns the primary modifier capitalized for the UI.
func (kb *KeyBindingsConfig) PrimaryDisplay() string {
	return displayKeybinding(kb.Primary())
}

// SecondaryDisplay returns the secondary modifier capitalized for the UI.
func (kb *KeyBindingsConfig) SecondaryDisplay() string {
	return displayKeybinding(kb.Secondary())
}

// displayKeybinding capitalizes each part of a key string and expands an
// uppercase letter back into an explicit Shift for readability.
func displayKeybinding(key string) string {
	parts := strings.Split(key, "+")

	hasShift := false
	for _, p := range parts {
		if strings.EqualFold(p, "shift") {
			hasShift = true
		}
	}

	var out []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				out = append(out, "Shift")
			}
			out = append(out, part)
			continue
		}
		out = append(out, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(out, "+")
}

// Validate reports whether the modifier configuration is usable and any
// warning worth surfacing.
func (kb *KeyBindingsConfig) Validate() (bool, string) {
	primary, secondary := kb.Primary(), kb.Secondary()

	if primary == "" || secondary == "" {
		return false, "modifiers cannot be empty"
	}
	if primary == "shift" || secondary == "shift" {
		return false, "shift alone conflicts with typing"
	}
	if strings.Contains(primary, "ctrl") || strings.Contains(secondary, "ctrl") {
		return true, "ctrl may conflict with terminal shortcuts (Ctrl+C, Ctrl+Z, Ctrl+D)"
	}
	return true, ""
}
