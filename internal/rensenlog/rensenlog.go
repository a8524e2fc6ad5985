// Package rensenlog wires go.uber.org/zap into a plain-text, one-line-
// per-entry log sink:
//
//	[<datetime>] <Kind>: <message>
//
// one line per entry, appended to a single shared log file. The file is
// wrapped in zapcore.Lock, which serializes concurrent Write calls and
// gives every task and the scheduler a thread-safe append-only sink.
package rensenlog

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/gingapard/rensen/internal/rensenerr"
)

const kindFieldKey = "__kind"

var bufferPool = buffer.NewPool()

// Logger is the sink every component logs through.
type Logger struct {
	z *zap.Logger
}

// Open appends to the log file at path, creating it and any parent
// directories if needed.
func Open(path string) (*Logger, error) {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, rensenerr.Wrap(rensenerr.FS, "create log directory", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.FS, "open log file", err)
	}

	core := zapcore.NewCore(newLineEncoder(), zapcore.Lock(f), zapcore.DebugLevel)
	return &Logger{z: zap.New(core)}, nil
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	return &Logger{z: zap.NewNop()}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// Error logs a failure with its Kind, matching "[<datetime>] <Kind>: <message>".
func (l *Logger) Error(kind rensenerr.Kind, format string, args ...any) {
	l.z.Error(fmt.Sprintf(format, args...), zap.String(kindFieldKey, string(kind)))
}

// Warn logs a non-fatal condition.
func (l *Logger) Warn(kind rensenerr.Kind, format string, args ...any) {
	l.z.Warn(fmt.Sprintf(format, args...), zap.String(kindFieldKey, string(kind)))
}

// Info logs routine progress (per-file "fetching"/"skipping"/"marking
// deleted" messages, run start/stop, etc).
func (l *Logger) Info(format string, args ...any) {
	l.z.Info(fmt.Sprintf(format, args...), zap.String(kindFieldKey, "Info"))
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// lineEncoder renders "[<datetime>] <Kind>: <message>\n", reading the
// Kind back out of the single kindFieldKey field each call above sets.
// It embeds zapcore's console encoder only to satisfy the rest of the
// Encoder interface (ObjectEncoder, Clone); EncodeEntry is the only
// method this sink actually exercises.
type lineEncoder struct {
	zapcore.Encoder
}

func newLineEncoder() zapcore.Encoder {
	return &lineEncoder{Encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
	})}
}

func (e *lineEncoder) Clone() zapcore.Encoder {
	return &lineEncoder{Encoder: e.Encoder.Clone()}
}

func (e *lineEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	kind := "Info"
	for _, f := range fields {
		if f.Key == kindFieldKey {
			kind = f.String
			break
		}
	}

	buf := bufferPool.Get()
	buf.AppendByte('[')
	buf.AppendString(entry.Time.Format(time.RFC3339))
	buf.AppendString("] ")
	buf.AppendString(kind)
	buf.AppendString(": ")
	buf.AppendString(entry.Message)
	buf.AppendByte('\n')
	return buf, nil
}
