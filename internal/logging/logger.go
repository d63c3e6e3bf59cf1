package logging

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/clog/hooks"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

type Format int

const (
	FormatConsole Format = iota + 1
	FormatJSON
)

var (
	defaultLogger = slog.Default()
	loggerMutex   sync.Mutex
)

func Default() *slog.Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	return defaultLogger
}

func SetDefault(logger *slog.Logger) {
	loggerMutex.Lock()
	defaultLogger = logger
	loggerMutex.Unlock()
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "console", "text":
		return FormatConsole, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, goerr.New("unsupported log format", goerr.V("format", s))
	}
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, goerr.Wrap(err, "invalid log level", goerr.V("level", s))
	}
	return level, nil
}

func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Token"),
		masq.WithFieldPrefix("secret_"),
	)

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: filter,
		})

	default:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithAttrHook(hooks.GoErr()),
			clog.WithColorMap(&clog.ColorMap{
				Level: map[slog.Level]*color.Color{
					slog.LevelDebug: color.New(color.FgGreen, color.Bold),
					slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
					slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
					slog.LevelError: color.New(color.FgRed, color.Bold),
				},
				LevelDefault: color.New(color.FgBlue, color.Bold),
				Time:         color.New(color.FgWhite),
				Message:      color.New(color.FgHiWhite),
				AttrKey:      color.New(color.FgHiCyan),
				AttrValue:    color.New(color.FgHiWhite),
			}),
		)
	}

	return slog.New(handler)
}

func ErrAttr(err error) slog.Attr { return slog.Any("error", err) }
