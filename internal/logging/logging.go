package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// SessionContext returns a provider tagging records with the session id and the
// currently active target, read through active.
func SessionContext(session string, active func() int) ContextProvider {
	return func() []slog.Attr {
		attrs := []slog.Attr{slog.String("session", session)}
		if active != nil {
			if a := active(); a >= 0 {
				attrs = append(attrs, slog.Int("active_target", a))
			}
		}
		return attrs
	}
}
