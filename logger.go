package gamelan

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging surface the library emits to.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(log zerolog.Logger) Logger {
	return &zerologLogger{log: log}
}

// NewConsoleLogger builds a zerolog-backed logger writing human-readable
// lines to w, suitable for examples and local debugging.
func NewConsoleLogger(w io.Writer) Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return &zerologLogger{log: zerolog.New(out).With().Timestamp().Logger()}
}

func (l *zerologLogger) Debug(msg string, kv ...any) { emit(l.log.Debug(), msg, kv) }
func (l *zerologLogger) Info(msg string, kv ...any)  { emit(l.log.Info(), msg, kv) }
func (l *zerologLogger) Warn(msg string, kv ...any)  { emit(l.log.Warn(), msg, kv) }
func (l *zerologLogger) Error(msg string, kv ...any) { emit(l.log.Error(), msg, kv) }

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	ev.Msg(msg)
}

// PhaseEvent is the structured record emitted once per phase transition.
type PhaseEvent struct {
	Operation    string
	InvocationID string
	Phase        Phase
	Attempt      int
	Duration     time.Duration
	Err          error
}

// EventSink receives phase events. Sinks are fire-and-forget observers and
// must never block: a slow sink stalls every invocation on the client.
type EventSink interface {
	Emit(ev PhaseEvent)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ev PhaseEvent)

func (f EventSinkFunc) Emit(ev PhaseEvent) {
	f(ev)
}

// NewLogSink returns a sink writing one debug line per phase transition.
func NewLogSink(logger Logger) EventSink {
	return EventSinkFunc(func(ev PhaseEvent) {
		if ev.Err != nil {
			logger.Debug("phase failed",
				"operation", ev.Operation,
				"invocationID", ev.InvocationID,
				"phase", string(ev.Phase),
				"attempt", ev.Attempt,
				"duration", ev.Duration,
				"error", ev.Err.Error(),
			)
			return
		}
		logger.Debug("phase complete",
			"operation", ev.Operation,
			"invocationID", ev.InvocationID,
			"phase", string(ev.Phase),
			"attempt", ev.Attempt,
			"duration", ev.Duration,
		)
	})
}
