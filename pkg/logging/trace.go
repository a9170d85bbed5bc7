package logging

import "log/slog"

// EnableTrace turns on per-message telemetry logging. Level "TRACE" in the
// config sets it.
var EnableTrace = false

// Trace logs a message at DEBUG level, but only if EnableTrace is true.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}
