// Package logs is the public surface of the pipeline, composing the
// dispatcher and the storage engine.
package logs

import (
	"context"
	"runtime"
	"time"

	"github.com/opencode-ai/logvault/internal/dispatch"
	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/store"
)

// RecordParams carries the producer-supplied fields of a log event. Zero
// values get defaults: Time becomes now, Tag falls back to Label, and
// missing caller info is captured from the call site unless OmitCaller is
// set. Decoded events set OmitCaller: their call site is the decoder loop,
// not anything worth recording.
type RecordParams struct {
	Time       time.Time
	Level      event.Level
	Message    string
	Label      string
	Tag        string
	Metadata   map[string]any
	Source     string
	File       string
	Function   string
	Line       int
	OmitCaller bool
}

type Service interface {
	Record(params RecordParams)
	Flush(ctx context.Context) error
	Query(ctx context.Context, q event.LogQuery) ([]event.LogRecord, error)
	Stream(ctx context.Context, q *event.LogQuery) <-chan event.LogRecord
	Previous(ctx context.Context, id int64) (*event.LogRecord, error)
	Next(ctx context.Context, id int64) (*event.LogRecord, error)
	ClearAll(ctx context.Context) error
	SizeBytes() (int64, bool)
	Shutdown(ctx context.Context) error
}

type service struct {
	appName    string
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

// NewService wires a dispatcher over st.
func NewService(st *store.Store, appName string, opts dispatch.Options) Service {
	opts.AppName = appName
	return &service{
		appName:    appName,
		store:      st,
		dispatcher: dispatch.New(st, opts),
	}
}

// Record builds a LogEvent from params and enqueues it. It never blocks.
func (s *service) Record(params RecordParams) {
	ev := event.LogEvent{
		Timestamp:    params.Time,
		Level:        params.Level,
		Message:      params.Message,
		Label:        params.Label,
		Tag:          params.Tag,
		Metadata:     params.Metadata,
		MetadataJSON: event.EncodeMetadata(params.Metadata),
		AppName:      s.appName,
		Source:       params.Source,
		File:         params.File,
		Function:     params.Function,
		Line:         params.Line,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Tag == "" {
		ev.Tag = ev.Label
	}
	if ev.File == "" && !params.OmitCaller {
		if pc, file, line, ok := runtime.Caller(1); ok {
			ev.File = file
			ev.Line = line
			if fn := runtime.FuncForPC(pc); fn != nil {
				ev.Function = fn.Name()
			}
		}
	}
	s.dispatcher.Enqueue(ev)
}

func (s *service) Flush(ctx context.Context) error {
	return s.dispatcher.Flush(ctx)
}

func (s *service) Query(ctx context.Context, q event.LogQuery) ([]event.LogRecord, error) {
	return s.store.Query(ctx, q)
}

// Stream subscribes to the live broadcast and re-filters every record
// through the id-scoped form of the bulk query, so stream filtering can
// never drift from Query semantics. A nil query matches everything.
func (s *service) Stream(ctx context.Context, q *event.LogQuery) <-chan event.LogRecord {
	sub := s.dispatcher.Subscribe(ctx)
	out := make(chan event.LogRecord)

	var filter *event.LogQuery
	if q != nil {
		// Pagination has no meaning for a one-record membership check.
		f := *q
		f.Limit = 0
		f.Offset = 0
		filter = &f
	}

	go func() {
		defer close(out)
		for rec := range sub {
			if filter != nil {
				matches, err := s.store.QueryIDs(ctx, *filter, []int64{rec.ID})
				if err != nil || len(matches) == 0 {
					continue
				}
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Previous returns the record just before id in global id order, ignoring
// any filter. Nil means id is already the oldest.
func (s *service) Previous(ctx context.Context, id int64) (*event.LogRecord, error) {
	return s.store.Navigate(ctx, id, store.Previous)
}

// Next returns the record just after id in global id order, ignoring any
// filter. Nil means id is already the newest.
func (s *service) Next(ctx context.Context, id int64) (*event.LogRecord, error) {
	return s.store.Navigate(ctx, id, store.Next)
}

func (s *service) ClearAll(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}

func (s *service) SizeBytes() (int64, bool) {
	return s.store.SizeBytes()
}

func (s *service) Shutdown(ctx context.Context) error {
	return s.dispatcher.Shutdown(ctx)
}
