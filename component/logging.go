package component

import "log/slog"

// Logger returns logger, or slog.Default() when nil, tagged with the component name
func Logger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
