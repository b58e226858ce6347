package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies scenewalk logs in OTel and Graylog.
const ServiceName = "scenewalk"

// console receives records when Setup gets no file. Tests swap it.
var console io.Writer = os.Stdout

// SlogManager owns the process logger: a text handler on the log file or console,
// the OTel bridge and any extra sinks, all behind the session context.
type SlogManager struct {
	logger   *slog.Logger
	level    slog.LevelVar
	context  ContextProvider
	provider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names in any case and falls back to info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// utcTime renders record times as RFC 3339 in UTC so file logs from kiosks in
// different zones line up.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// SetContext sets the provider of per-record attributes (session, active target).
// It takes effect on the next Setup.
func (m *SlogManager) SetContext(p ContextProvider) {
	m.context = p
}

// SetLevel changes the threshold of the text handler without rebuilding the logger.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Setup builds the logger. Records go to file when given, otherwise to the console.
// A non-nil provider adds the OTel bridge; extra handlers (Graylog) keep their own
// levels.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	m.SetLevel(level)
	m.provider = provider

	out := file
	if out == nil {
		out = console
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcTime}),
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	m.logger = slog.New(newSessionHandler(NewMultiHandler(handlers...), m.context))
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces buffered OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
