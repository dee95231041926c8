package logging

import (
	"encoding"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultJournalLimit = 4 << 20

// journal appends one flat JSON object per event to png2lvgl-<run>-NNN.jsonl,
// starting a new part when the current one would exceed limit.
type journal struct {
	mu      sync.Mutex
	dir     string
	run     string
	limit   int64
	part    int
	file    *os.File
	written int64
	closed  bool
}

func DefaultLogDirPath() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "png2lvgl", "logs"), nil
}

func openJournal(dir string, limit int64) (*journal, error) {
	if strings.TrimSpace(dir) == "" {
		fallback, err := DefaultLogDirPath()
		if err != nil {
			return nil, fmt.Errorf("resolve log directory: %w", err)
		}
		dir = fallback
	}
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	j := &journal{dir: dir, run: time.Now().UTC().Format("20060102-150405"), limit: limit}
	if err := j.nextPart(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *journal) path(part int) string {
	return filepath.Join(j.dir, fmt.Sprintf("png2lvgl-%s-%03d.jsonl", j.run, part))
}

// nextPart closes the open part and creates the following one.
func (j *journal) nextPart() error {
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
	j.part++
	f, err := os.OpenFile(j.path(j.part), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	j.file = f
	j.written = 0
	return nil
}

func (j *journal) append(event Event) error {
	line, err := journalLine(event)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return os.ErrClosed
	}
	if j.written > 0 && j.written+int64(len(line)) > j.limit {
		if err := j.nextPart(); err != nil {
			return err
		}
	}
	n, err := j.file.Write(line)
	j.written += int64(n)
	return err
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// journalLine flattens fields next to the reserved ts, level and msg keys.
// A field that collides with a reserved key is stored as "field.<key>".
func journalLine(event Event) ([]byte, error) {
	record := make(map[string]any, len(event.Fields)+3)
	for key, value := range event.Fields {
		switch key {
		case "ts", "level", "msg":
			key = "field." + key
		}
		record[key] = journalValue(value)
	}
	record["ts"] = event.Time.UTC().Format(time.RFC3339Nano)
	record["level"] = levelLabel(event.Level)
	record["msg"] = event.Message
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

func journalValue(value any) any {
	switch v := value.(type) {
	case error:
		return v.Error()
	case encoding.TextMarshaler:
		if text, err := v.MarshalText(); err == nil {
			return string(text)
		}
	case fmt.Stringer:
		return v.String()
	}
	return value
}
