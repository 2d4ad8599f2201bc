package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Format selects how the zerolog backend renders records.
type Format string

const (
	// FormatPretty renders human-readable console lines.
	FormatPretty Format = "pretty"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// ToFormat parses the --log-format flag value. Unknown values fall back to pretty.
func ToFormat(format string) Format {
	if Format(format) == FormatJSON {
		return FormatJSON
	}
	return FormatPretty
}

type zerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a Logger writing to w.
func NewZerologLogger(w io.Writer, format Format, level Level) Logger {
	return &zerologLogger{logger: newZerolog(w, format, level)}
}

func newZerolog(w io.Writer, format Format, level Level) zerolog.Logger {
	if format == FormatPretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *zerologLogger) Debug(msg string, fields ...any) {
	emit(z.logger.Debug(), msg, fields)
}

func (z *zerologLogger) Info(msg string, fields ...any) {
	emit(z.logger.Info(), msg, fields)
}

func (z *zerologLogger) Warn(msg string, fields ...any) {
	emit(z.logger.Warn(), msg, fields)
}

func (z *zerologLogger) Error(msg string, fields ...any) {
	emit(z.logger.Error(), msg, fields)
}

func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.Str(key, err.Error())
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{logger: ctx.Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.logger.GetLevel()
}

// emit writes key/value pairs onto a zerolog event. Errors get their stack
// trace and, for the typed errors in pkg/errors, their structured fields.
func emit(event *zerolog.Event, msg string, fields []any) {
	if event == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			event = event.AnErr(key, v)
			if st := extractStacktrace(v); st != "" {
				event = event.Str(StacktraceAttrKey, st)
			}
			var marshaler zerolog.LogObjectMarshaler
			if errors.As(v, &marshaler) {
				event = event.Object(key+".detail", marshaler)
			}
		case zerolog.LogObjectMarshaler:
			event = event.Object(key, v)
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case float64:
			event = event.Float64(key, v)
		case []string:
			event = event.Strs(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ZerologProvider is the default LoggerProvider. Loggers created by it share
// one writer; SetLevel applies to loggers created afterwards.
type ZerologProvider struct {
	mu     sync.Mutex
	out    io.Writer
	format Format
	level  Level
}

// NewZerologProvider creates a provider writing to stderr in pretty format.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, FormatPretty, level)
}

// NewZerologProviderWithWriter creates a provider with an explicit writer and format.
func NewZerologProviderWithWriter(w io.Writer, format Format, level Level) *ZerologProvider {
	return &ZerologProvider{out: w, format: format, level: level}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewZerologLogger(p.out, p.format, p.level)
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetGlobalProvider replaces the provider used by GetLogger and GetLoggerWithName.
func SetGlobalProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetLogger returns a logger from the global provider.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the global provider.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}
