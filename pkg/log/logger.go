package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = p
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger of the process-wide provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}

// Options configures Setup.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json (default) or console

	// File enables rotated file output in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup installs a zerolog provider built from opts as the process-wide provider
// and routes pkg/errors warnings through it. The returned closer releases the
// rotated log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	// Cloud Logging compatible keys
	zerolog.LevelFieldName = "severity"
	zerolog.MessageFieldName = "message"
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		return strings.ToUpper(l.String())
	}
	zerolog.ErrorStackFieldName = StacktraceKey
	zerolog.ErrorStackMarshaler = extractStacktrace

	var out io.Writer = os.Stdout
	switch opts.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	default:
		return nil, scigoerrors.NewValidationError("log.format", "must be json or console", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out = io.MultiWriter(out, rotated)
		closer = rotated
	}

	provider := NewZerologProviderWithWriter(out, level)
	SetProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	scigoerrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), "warning", w)
	})
	return closer, nil
}

// ParseLevel converts a level name to Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, scigoerrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

// ToLogLevel is ParseLevel for trusted input. It panics on an unknown level.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
	return l
}

// extractStacktrace returns the first safe detail recorded by cockroachdb/errors,
// which holds the formatted stack of errors.WithStack.
func extractStacktrace(err error) interface{} {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
