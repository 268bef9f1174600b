package config

import (
	"fmt"
	"slices"
	"strings"
)

// IDE identifies the assistant driving the server. It is decided once at the
// CLI boundary and only used for capability detection.
type IDE string

// Known IDE kinds.
const (
	IDEUnknown    IDE = ""
	IDECursor     IDE = "cursor"
	IDECodeBuddy  IDE = "codebuddy"
	IDEClaudeCode IDE = "claude-code"
	IDEWindsurf   IDE = "windsurf"
	IDEVSCode     IDE = "vscode"
	IDECline      IDE = "cline"
	IDEHeadless   IDE = "headless" // no local browser available (remote or cloud mode)
)

var ides = []IDE{IDEUnknown, IDECursor, IDECodeBuddy, IDEClaudeCode, IDEWindsurf, IDEVSCode, IDECline, IDEHeadless}

// ParseIDE maps a user-supplied name onto the closed IDE set.
func ParseIDE(s string) (IDE, error) {
	ide := IDE(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(ides, ide) {
		return ide, nil
	}
	return IDEUnknown, fmt.Errorf("unknown ide %q", s)
}

// SupportsLogging reports whether the assistant consumes MCP log notifications.
func (i IDE) SupportsLogging() bool { return i == IDECodeBuddy }

// CanOpenBrowser reports whether interactive pages can be opened locally.
func (i IDE) CanOpenBrowser() bool { return i != IDEHeadless }
