package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogHandler sends records to a Graylog GELF UDP input. Each record becomes one
// GELF message; the closer releases the socket.
func NewGraylogHandler(addr, level string) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gelf writer: %w", err)
	}
	w.Facility = ServiceName
	return NewGELFHandler(w, level), w, nil
}

// NewGELFHandler formats records for a GELF writer.
func NewGELFHandler(w io.Writer, level string) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime})
}
