package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

// Logger prints conversion diagnostics to a terminal stream and can mirror
// them into a JSONL journal. Events below the verbosity threshold still reach
// the journal.
type Logger struct {
	threshold atomic.Int64

	mu        sync.RWMutex
	out       io.Writer
	ansi      bool
	journal   *journal
	listeners map[uint64]func(Event)
	nextID    uint64
}

type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

// New returns a Logger writing to out at info level. Styled output is used
// only when out is a colour-capable terminal.
func New(out io.Writer) *Logger {
	if out == nil {
		out = io.Discard
	}
	logger := &Logger{
		out:       out,
		ansi:      shouldPrettyPrint() && isTerminal(out),
		listeners: map[uint64]func(Event){},
	}
	logger.threshold.Store(int64(slog.LevelInfo))
	return logger
}

func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetVerbose shows debug events on the terminal and to listeners.
func (l *Logger) SetVerbose(verbose bool) {
	if l == nil {
		return
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l.threshold.Store(int64(level))
}

func (l *Logger) Verbose() bool {
	return l != nil && slog.Level(l.threshold.Load()) <= slog.LevelDebug
}

func (l *Logger) Pretty() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ansi
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(msg string, fields ...slog.Attr) { l.record(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...slog.Attr)  { l.record(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...slog.Attr)  { l.record(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...slog.Attr) { l.record(slog.LevelError, msg, fields) }

// OpenJournal mirrors every event, debug included, into rotating JSONL files
// under dir. An empty dir selects DefaultLogDirPath. A previously opened
// journal is closed.
func (l *Logger) OpenJournal(dir string, maxBytes int64) error {
	if l == nil {
		return nil
	}
	j, err := openJournal(dir, maxBytes)
	if err != nil {
		return err
	}
	l.mu.Lock()
	previous := l.journal
	l.journal = j
	l.mu.Unlock()
	if previous != nil {
		_ = previous.close()
	}
	return nil
}

// Close flushes and detaches the journal. Terminal output keeps working.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	j := l.journal
	l.journal = nil
	l.mu.Unlock()
	if j == nil {
		return nil
	}
	return j.close()
}

// Subscribe registers fn for every visible event and returns its removal func.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *Logger) record(level slog.Level, msg string, attrs []slog.Attr) {
	if l == nil {
		return
	}
	event := Event{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  attrsToMap(attrs),
	}

	l.mu.RLock()
	j := l.journal
	out, styled := l.out, l.ansi
	var listeners []func(Event)
	visible := level >= slog.Level(l.threshold.Load())
	if visible {
		listeners = make([]func(Event), 0, len(l.listeners))
		for _, fn := range l.listeners {
			listeners = append(listeners, fn)
		}
	}
	l.mu.RUnlock()

	if j != nil {
		_ = j.append(event)
	}
	if !visible {
		return
	}
	line := FormatEventLine(event)
	if styled {
		line = FormatEventANSI(event)
	}
	_, _ = io.WriteString(out, line)
	for _, fn := range listeners {
		fn(event)
	}
}
