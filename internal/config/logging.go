package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger builds the process logger: text to stderr, JSON to a rotating
// file and text into buf (served by /logs). buf may be nil. The returned
// function closes the log file.
func SetupLogger(cfg LoggingConfig, buf *LogBuffer) (*slog.Logger, func() error) {
	text := []io.Writer{os.Stderr}
	if buf != nil {
		text = append(text, buf)
	}

	var jsonOut io.Writer
	closer := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			slog.Error("failed to create log directory, file logging disabled", "error", err, "file", cfg.File)
		} else {
			rotating := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			}
			jsonOut = rotating
			closer = rotating.Close
		}
	}

	return fanoutLogger(ParseLevel(cfg.Level), text, jsonOut), closer
}

// fanoutLogger writes text records to every writer in text and JSON records
// to jsonOut when it is non-nil.
func fanoutLogger(level slog.Level, text []io.Writer, jsonOut io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	handlers := make([]slog.Handler, 0, len(text)+1)
	for _, w := range text {
		handlers = append(handlers, slog.NewTextHandler(w, opts))
	}
	if jsonOut != nil {
		handlers = append(handlers, slog.NewJSONHandler(jsonOut, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogBuffer captures recent log lines in memory and fans them out to live
// subscribers.
type LogBuffer struct {
	mu     sync.Mutex
	lines  []string
	max    int
	nextID int
	subs   map[int]chan string
}

// NewLogBuffer keeps at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 1000
	}
	return &LogBuffer{
		lines: make([]string, 0, max),
		max:   max,
		subs:  make(map[int]chan string),
	}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	line := string(p)

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, line)
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}

	// Slow subscribers miss lines rather than block logging.
	for _, ch := range lb.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// Subscribe returns a channel of new lines and a function that detaches it.
func (lb *LogBuffer) Subscribe() (<-chan string, func()) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	id := lb.nextID
	lb.nextID++
	ch := make(chan string, 64)
	lb.subs[id] = ch

	return ch, func() {
		lb.mu.Lock()
		defer lb.mu.Unlock()
		if _, ok := lb.subs[id]; ok {
			delete(lb.subs, id)
			close(ch)
		}
	}
}
