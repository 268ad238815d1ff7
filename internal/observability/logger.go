// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for Harmony, generalized from the teacher's
// coreengine/observability package and coreengine/agents.Logger interface.
package observability

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the logging interface every Harmony component receives,
// carried over unchanged in shape from coreengine/agents.Logger so built-in
// middlewares and services read exactly like the teacher's agents do.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

type zlogger struct {
	l zerolog.Logger
}

// NewLogger returns a Logger backed by zerolog, writing leveled, field-based
// output to stderr (console-pretty when stderr is a TTY, JSON otherwise).
func NewLogger(level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var out zerolog.Logger
	if fi, statErr := os.Stderr.Stat(); statErr == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		out = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	out = out.Level(lvl)
	return &zlogger{l: out}
}

func withFields(ctx zerolog.Context, fields []any) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return ctx
}

func (z *zlogger) Debug(msg string, fields ...any) {
	applyFields(z.l.Debug(), fields).Msg(msg)
}

func (z *zlogger) Info(msg string, fields ...any) {
	applyFields(z.l.Info(), fields).Msg(msg)
}

func (z *zlogger) Warn(msg string, fields ...any) {
	applyFields(z.l.Warn(), fields).Msg(msg)
}

func (z *zlogger) Error(msg string, fields ...any) {
	applyFields(z.l.Error(), fields).Msg(msg)
}

func applyFields(ev *zerolog.Event, fields []any) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	return ev
}

// Bind returns a child Logger with the given fields permanently attached,
// matching the teacher's agents.Logger.Bind chaining idiom.
func (z *zlogger) Bind(fields ...any) Logger {
	ctx := z.l.With()
	ctx = withFields(ctx, fields)
	return &zlogger{l: ctx.Logger()}
}
