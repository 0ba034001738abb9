package discovery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandTimeout bounds every subprocess started during discovery.
const CommandTimeout = 5 * time.Second

// RunCommand runs name with args under CommandTimeout and returns trimmed stdout.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	trimmed := strings.TrimSpace(string(output))
	if err != nil {
		if ctx.Err() != nil {
			return trimmed, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return trimmed, fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, msg)
		}
		return trimmed, fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
