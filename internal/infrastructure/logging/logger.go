package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
)

// ServiceName is attached to every entry as "service".
const ServiceName = "webcamctrl"

// Logger is the service-wide slog logger. Loggers derived with With or
// Component share the parent's level, so SetLevel on any of them affects
// all.
type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	file  io.Closer
}

// New builds the logger described by the logging config section. Every
// entry carries the service name and build version.
func New(cfg config.LoggingConfig, version string) *Logger {
	out, file := destination(cfg)
	l := newWithWriter(cfg, version, out)
	l.file = file
	return l
}

func newWithWriter(cfg config.LoggingConfig, version string, out io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		Logger: slog.New(h).With("service", ServiceName, "version", version),
		level:  level,
	}
}

// destination returns the writer for cfg.Output and, for file output, the
// lumberjack rotator so Close can release it.
func destination(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		rot := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		return rot, rot
	case "stderr":
		return os.Stderr, nil
	default:
		return os.Stdout, nil
	}
}

// parseLevel accepts slog's level names in any case plus "warning".
// Anything else is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component is shorthand for With("component", name).
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// SetLevel changes the minimum level of l and every logger sharing it.
func (l *Logger) SetLevel(s string) {
	l.level.Set(parseLevel(s))
}

// Close releases the log file, if any. Only the root logger owns it.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Default is the logger used until the config file has been read: JSON
// on stdout at info.
func Default() *Logger {
	return newWithWriter(config.LoggingConfig{Level: "info"}, "dev", os.Stdout)
}
