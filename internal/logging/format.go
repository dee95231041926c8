package logging

import (
	"encoding"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const clipLimit = 240

// Truncate flattens value onto one line and clips it to a printable width.
func Truncate(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	if value == "" {
		return "<empty>"
	}
	return ansi.Truncate(value, clipLimit, "...")
}

func FormatEventLine(event Event) string {
	ts := event.Time.Format("15:04:05")
	level := strings.ToUpper(event.Level.String())
	fields := ""
	if len(event.Fields) > 0 {
		keys := orderedFieldKeys(event.Fields)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formatFieldValue(event.Fields[key])))
		}
		fields = " " + strings.Join(parts, " ")
	}
	return fmt.Sprintf("%s [%s] %s%s\n", ts, level, event.Message, fields)
}

func formatFieldValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case error:
		return quoteIfSpaced(Truncate(v.Error()))
	case string:
		return quoteIfSpaced(v)
	case encoding.TextMarshaler:
		if text, err := v.MarshalText(); err == nil {
			return quoteIfSpaced(string(text))
		}
	}
	return fmt.Sprintf("%v", value)
}

func quoteIfSpaced(value string) string {
	if value == "" || strings.ContainsAny(value, " \t\"=") {
		return fmt.Sprintf("%q", value)
	}
	return value
}

// orderedFieldKeys sorts keys alphabetically with "error" moved to the end.
func orderedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	hasError := false
	for key := range fields {
		if key == "error" {
			hasError = true
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if hasError {
		keys = append(keys, "error")
	}
	return keys
}

func levelLabel(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG"
	case level <= slog.LevelInfo:
		return "INFO"
	case level <= slog.LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}
