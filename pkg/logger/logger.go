package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is built
type Config struct {
	// Level is parsed with zerolog.ParseLevel; unknown values fall back to info.
	Level string
	// Format is "console" or "json".
	Format string
	// StderrOnly sends every level to stderr. Required when stdout carries
	// protocol traffic, as with the stdio transport.
	StderrOnly bool

	Stdout io.Writer
	Stderr io.Writer
}

var (
	mu     sync.RWMutex
	logger zerolog.Logger
)

func init() {
	logger = New(Config{Level: "info", Format: "console"})
}

// New builds a logger that writes debug/info/warn to stdout and
// error/fatal/panic to stderr, unless cfg.StderrOnly is set.
func New(cfg Config) zerolog.Logger {
	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if cfg.StderrOnly {
		stdout = stderr
	}

	wrap := func(w io.Writer) io.Writer {
		if strings.EqualFold(cfg.Format, "json") {
			return w
		}
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	writer := zerolog.MultiLevelWriter(
		SpecificLevelWriter{
			Writer: wrap(stdout),
			Levels: []zerolog.Level{
				zerolog.TraceLevel, zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel,
			},
		},
		SpecificLevelWriter{
			Writer: wrap(stderr),
			Levels: []zerolog.Level{
				zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel,
			},
		},
	)

	return zerolog.New(writer).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel converts a level name, defaulting to info
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

// Init replaces the package logger and returns it
func Init(cfg Config) zerolog.Logger {
	l := New(cfg)
	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// Get returns the package logger
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component derives a child logger tagged with the component name
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// multilevel writer from https://stackoverflow.com/questions/76858037/how-to-use-zerolog-to-filter-info-logs-to-stdout-and-error-logs-to-stderr
type SpecificLevelWriter struct {
	io.Writer
	Levels []zerolog.Level
}

func (w SpecificLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	for _, l := range w.Levels {
		if l == level {
			return w.Write(p)
		}
	}
	return len(p), nil
}
