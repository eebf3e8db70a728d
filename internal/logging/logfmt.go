package logging

import (
	"io"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"

	"github.com/opencode-ai/logvault/internal/event"
)

// DecodeStream reads logfmt records from r and hands each one to sink as a
// LogEvent. Well-known keys (time, level, msg, label, tag, source) map to
// event fields; everything else lands in metadata. Unparseable values keep
// their defaults rather than failing the record.
func DecodeStream(r io.Reader, appName string, sink func(event.LogEvent)) error {
	d := logfmt.NewDecoder(r)
	for d.ScanRecord() {
		ev := event.LogEvent{
			Timestamp: time.Now(),
			Level:     event.LevelInfo,
			AppName:   appName,
		}
		md := make(map[string]any)
		for d.ScanKeyval() {
			key, val := string(d.Key()), string(d.Value())
			switch key {
			case "time", "ts":
				if parsed, err := time.Parse(time.RFC3339, val); err == nil {
					ev.Timestamp = parsed
				}
			case "level", "lvl":
				if l, err := parseLooseLevel(val); err == nil {
					ev.Level = l
				}
			case "msg", "message":
				ev.Message = val
			case LabelKey, "logger":
				ev.Label = val
			case TagKey:
				ev.Tag = val
			case "source":
				ev.Source = val
			default:
				md[key] = val
			}
		}
		if ev.Tag == "" {
			ev.Tag = ev.Label
		}
		if len(md) > 0 {
			ev.Metadata = md
		}
		ev.MetadataJSON = event.EncodeMetadata(md)
		sink(ev)
	}
	return d.Err()
}

// parseLooseLevel accepts the common logfmt spellings on top of the
// canonical names.
func parseLooseLevel(s string) (event.Level, error) {
	switch strings.ToLower(s) {
	case "warn":
		return event.LevelWarning, nil
	case "err":
		return event.LevelError, nil
	case "fatal", "panic":
		return event.LevelCritical, nil
	}
	return event.ParseLevel(strings.ToLower(s))
}
