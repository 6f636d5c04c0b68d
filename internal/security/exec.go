package security

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"buildgate/pkg/cmdutil"
)

// DefaultAllowedCommands is the default set of commands allowed for history lookups.
var DefaultAllowedCommands = map[string]bool{
	"git": true,
}

// SandboxedExecutor provides safe command execution with validation and sandboxing.
type SandboxedExecutor struct {
	// AllowedCommands is the map of commands that are permitted to run.
	// Commands are matched by base name, so /usr/bin/git counts as git.
	AllowedCommands map[string]bool

	// WorkDir is the working directory for command execution.
	WorkDir string

	// Env contains environment variables for the command.
	Env []string

	// Timeout bounds each execution. Zero means no timeout.
	Timeout time.Duration
}

// NewSandboxedExecutor creates a new sandboxed executor with default settings.
func NewSandboxedExecutor(workDir string) *SandboxedExecutor {
	return &SandboxedExecutor{
		AllowedCommands: DefaultAllowedCommands,
		WorkDir:         workDir,
	}
}

// Execute runs a command with validation and sandboxing.
// Returns standard output; standard error is folded into the returned error.
func (e *SandboxedExecutor) Execute(ctx context.Context, cmdParts []string) ([]byte, error) {
	if err := e.ValidateCommandParts(cmdParts); err != nil {
		return nil, err
	}

	result, err := cmdutil.Run(ctx, cmdutil.ExecOptions{
		Dir:     e.WorkDir,
		Env:     e.Env,
		Timeout: e.Timeout,
	}, cmdParts)
	if err != nil {
		if result != nil && len(result.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", cmdutil.FormatCommand(cmdParts), err,
				strings.TrimSpace(string(bytes.ToValidUTF8(result.Stderr, nil))))
		}
		return nil, fmt.Errorf("%s: %w", cmdutil.FormatCommand(cmdParts), err)
	}

	return result.Stdout, nil
}

// ValidateCommandParts validates a command before execution.
func (e *SandboxedExecutor) ValidateCommandParts(cmdParts []string) error {
	if len(cmdParts) == 0 {
		return fmt.Errorf("empty command")
	}

	baseCmd := filepath.Base(cmdParts[0])
	if !e.AllowedCommands[baseCmd] {
		return fmt.Errorf("command not allowed: %s (must be one of: %v)",
			baseCmd, e.allowedCommandsList())
	}

	// Prevent shell metacharacters in arguments
	for i, arg := range cmdParts[1:] {
		if containsShellMetachars(arg) {
			return fmt.Errorf("argument %d contains shell metacharacters: %s", i+1, arg)
		}
	}

	return nil
}

// IsCommandAllowed checks if a command is in the allowed list.
func (e *SandboxedExecutor) IsCommandAllowed(cmd string) bool {
	return e.AllowedCommands[filepath.Base(cmd)]
}

func (e *SandboxedExecutor) allowedCommandsList() []string {
	commands := make([]string, 0, len(e.AllowedCommands))
	for cmd := range e.AllowedCommands {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}

// containsShellMetachars checks if a string contains shell metacharacters.
// These characters can be used for command injection attacks.
func containsShellMetachars(s string) bool {
	dangerous := []string{
		";",  // Command separator
		"|",  // Pipe
		"&",  // Background/AND
		"$",  // Variable expansion
		"`",  // Command substitution
		"\n", // Newline (command separator)
		">",  // Redirect output
		"<",  // Redirect input
		"(",  // Subshell start
		")",  // Subshell end
		"{",  // Brace expansion start
		"}",  // Brace expansion end
		"*",  // Glob wildcard
		"?",  // Glob single char
		"[",  // Glob character class
		"]",  // Glob character class end
		"\\", // Escape character
		"'",  // Single quote
		"\"", // Double quote
	}

	for _, char := range dangerous {
		if strings.Contains(s, char) {
			return true
		}
	}

	return false
}
