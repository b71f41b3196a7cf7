// Package cmdlog wraps CLI subcommands with a run counter and a log line.
package cmdlog

import (
	"time"

	"linkloom/internal/logging"
	"linkloom/internal/metrics"
)

// Run executes f as the named command, counting runs and failures.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"command": cmd, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err.Error()
		logging.Error("command_failed", fields)
		return err
	}
	logging.Info("command_ok", fields)
	return nil
}
