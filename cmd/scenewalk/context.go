package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/logging"
	intOtel "github.com/scenewalk/scenewalk/internal/otel"
)

const configFileHint = config.FileName

// commandContext carries the persistent flags and the logging stack shared by
// subcommands.
type commandContext struct {
	configDir *string
	logLevel  *string

	configOnce sync.Once
	configErr  error

	logs    *logging.SlogManager
	otel    *intOtel.Provider
	closers []io.Closer
}

func newCommandContext(configDir, logLevel *string) *commandContext {
	return &commandContext{configDir: configDir, logLevel: logLevel}
}

// ensureConfig loads the config file once. Defaults apply even when it fails.
func (c *commandContext) ensureConfig() error {
	c.configOnce.Do(func() {
		dir := "."
		if c.configDir != nil && strings.TrimSpace(*c.configDir) != "" {
			dir = strings.TrimSpace(*c.configDir)
		}
		c.configErr = config.Load(dir)
	})
	return c.configErr
}

func (c *commandContext) level() string {
	if c.logLevel != nil && *c.logLevel != "" {
		return *c.logLevel
	}
	return config.GetString("logLevel")
}

// logOptions selects where a command's logs go.
type logOptions struct {
	Name    string    // log file prefix; empty logs to stdout
	Started time.Time // stamps the file name
	Session string
	Active  func() int
}

// setupLogging builds the slog stack (file, OTel bridge, Graylog) and a zerolog
// logger writing to the same destination.
func (c *commandContext) setupLogging(opts logOptions) (*slog.Logger, zerolog.Logger, error) {
	level := c.level()
	c.logs = logging.NewSlogManager()

	var file *os.File
	if opts.Name != "" {
		dir := config.GetString("logsDir")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("create logs dir: %w", err)
		}
		path := logging.LogFilePath(dir, opts.Name, opts.Started)
		// keep the previous log of the same second around
		if _, err := os.Stat(path); err == nil {
			_ = os.Rename(path, path+".old")
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		file = f
		c.closers = append(c.closers, f)
	}

	var sink io.Writer = os.Stderr
	if file != nil {
		sink = file
	}

	var provider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      sink,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to initialize OTel provider:", err)
		} else {
			c.otel = p
			provider = p.LoggerProvider()
		}
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		h, closer, err := logging.NewGraylogHandler(config.GetString("graylog.address"), level)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to connect to Graylog:", err)
		} else {
			extra = append(extra, h)
			c.closers = append(c.closers, closer)
		}
	}

	if opts.Session != "" {
		c.logs.SetContext(logging.SessionContext(opts.Session, opts.Active))
	}
	if file != nil {
		c.logs.Setup(file, level, provider, extra...)
	} else {
		c.logs.Setup(nil, level, provider, extra...)
	}

	zl := zerolog.New(sink).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && lvl != zerolog.NoLevel {
		zl = zl.Level(lvl)
	}
	return c.logs.Logger(), zl, nil
}

// closeLogging flushes OTel and releases log sinks.
func (c *commandContext) closeLogging() error {
	var errs []error
	if c.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.otel.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := c.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		c.otel = nil
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
