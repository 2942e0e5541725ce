// Package logger configures log/slog for the bot and provides attribute
// constructors for the fields every leveling log line carries.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the logger.
type Options struct {
	Output io.Writer
	Level  slog.Level
	// JSON selects the JSON handler (production). Text is easier to read
	// while developing.
	JSON bool
}

// ParseLevel parses a level name. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

func Component(name string) slog.Attr   { return slog.String("component", name) }
func GuildID(id string) slog.Attr       { return slog.String("guild_id", id) }
func UserID(id string) slog.Attr        { return slog.String("user_id", id) }
func ChannelID(id string) slog.Attr     { return slog.String("channel_id", id) }
func EventID(id string) slog.Attr       { return slog.String("event_id", id) }
func CorrelationID(id string) slog.Attr { return slog.String("correlation_id", id) }
func Level(level int64) slog.Attr       { return slog.Int64("level", level) }
func XP(xp int64) slog.Attr             { return slog.Int64("xp", xp) }

// Err creates an error attribute. A nil error yields an empty attribute,
// which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
