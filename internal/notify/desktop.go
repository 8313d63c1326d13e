package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

// DesktopNotifier shows macOS notifications and confirm dialogs through osascript.
type DesktopNotifier struct {
	osascript string
	timeout   time.Duration
	run       func(ctx context.Context, script string) (string, error)
}

func NewDesktopNotifier(timeout time.Duration) *DesktopNotifier {
	d := &DesktopNotifier{timeout: timeout}
	if runtime.GOOS == "darwin" {
		if path, err := exec.LookPath("osascript"); err == nil {
			d.osascript = path
		}
	}
	d.run = d.runScript
	return d
}

func (d *DesktopNotifier) Permission() models.PermissionState {
	if d.osascript == "" {
		return models.PermissionDenied
	}
	return models.PermissionGranted
}

func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) error {
	if d.Permission() != models.PermissionGranted {
		return ErrNotificationsBlocked
	}
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeString(n.Body),
		escapeString(n.Title),
	)
	if _, err := d.run(ctx, script); err != nil {
		return fmt.Errorf("osascript notification error: %w", err)
	}
	return nil
}

// Confirm shows a two-button dialog. Pressing Cancel is not an error.
func (d *DesktopNotifier) Confirm(ctx context.Context, title, message string) (bool, error) {
	if d.osascript == "" {
		return false, fmt.Errorf("osascript not available")
	}
	script := fmt.Sprintf(`display dialog "%s" with title "%s" buttons {"Cancel", "Allow"} default button "Allow"`,
		escapeString(message),
		escapeString(title),
	)
	out, err := d.run(ctx, script)
	if err != nil {
		if strings.Contains(err.Error(), "User canceled") {
			return false, nil
		}
		return false, err
	}
	return strings.Contains(out, "button returned:Allow"), nil
}

func (d *DesktopNotifier) runScript(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.osascript, "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("dialog timeout")
		}
		return "", fmt.Errorf("%w, stderr: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// escapeString escapes backslashes and quotes for an AppleScript string literal.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
