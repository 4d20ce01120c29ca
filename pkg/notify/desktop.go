package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const desktopTimeout = 5 * time.Second

// DesktopNotifier shows a transient desktop pop-up: osascript on macOS and
// notify-send elsewhere.
type DesktopNotifier struct {
	goos    string
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewDesktopNotifier creates a notifier for the current platform.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{goos: runtime.GOOS, command: exec.CommandContext}
}

// Name returns the unique name of the notifier.
func (dn *DesktopNotifier) Name() string {
	return "desktop"
}

// Notify runs the platform notification command.
func (dn *DesktopNotifier) Notify(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, desktopTimeout)
	defer cancel()

	name, args := dn.commandLine(n)
	out, err := dn.command(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (dn *DesktopNotifier) commandLine(n Notification) (string, []string) {
	if dn.goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", appleScriptQuote(n.Message), appleScriptQuote(n.Title))
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{"--urgency=critical", n.Title, n.Message}
}

// appleScriptQuote returns s as an AppleScript string literal.
func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
