package logging

import "time"

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// LogEntry is one buffered log line. Context holds the structured fields.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// Field returns the named context field, or "" when absent.
func (e LogEntry) Field(key string) string {
	if e.Context == nil {
		return ""
	}
	return e.Context[key]
}
