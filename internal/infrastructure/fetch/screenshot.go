package fetch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"zenpress/internal/ports"
)

// ExecScreenshotter shells out to an external headless-browser command.
// The command template uses {url} and {out} placeholders, e.g.
// "chromium --headless --screenshot={out} {url}".
type ExecScreenshotter struct {
	template string
}

var _ ports.Screenshotter = (*ExecScreenshotter)(nil)

// NewExecScreenshotter returns nil when the template is empty, which the
// fetcher treats as "no screenshots".
func NewExecScreenshotter(template string) *ExecScreenshotter {
	if strings.TrimSpace(template) == "" {
		return nil
	}
	return &ExecScreenshotter{template: template}
}

// Capture runs the configured command with the placeholders substituted.
func (e *ExecScreenshotter) Capture(ctx context.Context, url, outPath string) error {
	expanded := strings.NewReplacer("{url}", url, "{out}", outPath).Replace(e.template)
	parts := strings.Fields(expanded)
	if len(parts) == 0 {
		return fmt.Errorf("empty screenshot command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("screenshot command: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
