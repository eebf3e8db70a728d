package logging

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/opencode-ai/logvault/internal/event"
)

// Extra slog levels covering the severities slog does not name.
const (
	LevelTrace    = slog.Level(-8)
	LevelNotice   = slog.Level(2)
	LevelCritical = slog.Level(12)
)

// Reserved attribute keys the handler lifts into event fields instead of
// metadata.
const (
	LabelKey = "label"
	TagKey   = "tag"
)

// Handler adapts slog calls into pipeline LogEvents. It is the per-call-site
// producer adapter: caller file, function and line come from the slog record
// PC, attributes become canonical sorted-key metadata JSON.
type Handler struct {
	appName  string
	source   string
	minLevel slog.Level
	sink     func(event.LogEvent)
	attrs    []slog.Attr
	group    string
}

// NewHandler builds a Handler delivering events to sink. The sink must not
// block; wiring it to a dispatcher enqueue satisfies that.
func NewHandler(appName, source string, minLevel slog.Level, sink func(event.LogEvent)) *Handler {
	return &Handler{
		appName:  appName,
		source:   source,
		minLevel: minLevel,
		sink:     sink,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ev := event.LogEvent{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		AppName:   h.appName,
		Source:    h.source,
		Label:     h.source,
	}
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		ev.File = frame.File
		ev.Function = frame.Function
		ev.Line = frame.Line
	}

	md := make(map[string]any)
	for _, a := range h.attrs {
		// Pre-bound attrs carry their group prefix already.
		h.addAttr(&ev, md, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(&ev, md, a, h.group)
		return true
	})
	if ev.Tag == "" {
		ev.Tag = ev.Label
	}
	if len(md) > 0 {
		ev.Metadata = md
	}
	ev.MetadataJSON = event.EncodeMetadata(md)

	h.sink(ev)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.group + a.Key, Value: a.Value})
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func (h *Handler) addAttr(ev *event.LogEvent, md map[string]any, a slog.Attr, prefix string) {
	a.Value = a.Value.Resolve()
	key := prefix + a.Key
	switch key {
	case LabelKey:
		ev.Label = a.Value.String()
		return
	case TagKey:
		ev.Tag = a.Value.String()
		return
	}
	md[key] = attrValue(a.Value)
}

func attrValue(v slog.Value) any {
	if v.Kind() != slog.KindGroup {
		return v.Any()
	}
	nested := make(map[string]any)
	for _, a := range v.Group() {
		nested[a.Key] = attrValue(a.Value.Resolve())
	}
	return nested
}

func levelFromSlog(l slog.Level) event.Level {
	switch {
	case l < slog.LevelDebug:
		return event.LevelTrace
	case l < slog.LevelInfo:
		return event.LevelDebug
	case l < LevelNotice:
		return event.LevelInfo
	case l < slog.LevelWarn:
		return event.LevelNotice
	case l < slog.LevelError:
		return event.LevelWarning
	case l < LevelCritical:
		return event.LevelError
	}
	return event.LevelCritical
}
