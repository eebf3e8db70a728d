// Package event defines the value types flowing through the log pipeline.
package event

import (
	"encoding/json"
	"time"
)

// TimeLayout is the fixed-width UTC timestamp encoding used in storage.
// Fixed width keeps lexicographic order identical to timestamp order, so
// range filters and ORDER BY work on the raw column text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// LogEvent is a single log event as constructed by a producer. Events are
// immutable once created; they gain an ID only when storage persists them.
type LogEvent struct {
	Timestamp    time.Time
	Level        Level
	Message      string
	Label        string
	Tag          string
	Metadata     map[string]any
	MetadataJSON string
	AppName      string
	Source       string
	File         string
	Function     string
	Line         int
}

// LogRecord is a persisted LogEvent. IDs are assigned by storage at append
// time, strictly increasing in persist order, and never reused.
type LogRecord struct {
	ID int64
	LogEvent
}

// EncodeMetadata renders metadata as canonical JSON with sorted keys.
// Empty or nil metadata renders as "{}". Encoding failures (unsupported
// value types) also fall back to "{}" so a bad attribute can never block
// an event.
func EncodeMetadata(md map[string]any) string {
	if len(md) == 0 {
		return "{}"
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// FormatTime encodes t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime decodes a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
