package logs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/logvault/internal/db"
	"github.com/opencode-ai/logvault/internal/dispatch"
	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/store"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.Connect(db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	svc := NewService(store.New(conn), "logvault-test", dispatch.Options{QueueDepth: 64})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc
}

func TestRecordAndQuery(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.Record(RecordParams{
		Level:    event.LevelNotice,
		Message:  "user signed in",
		Label:    "auth",
		Metadata: map[string]any{"user": "ada", "attempt": 1},
	})
	require.NoError(t, svc.Flush(ctx))

	records, err := svc.Query(ctx, event.LogQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, event.LevelNotice, rec.Level)
	assert.Equal(t, "user signed in", rec.Message)
	assert.Equal(t, "auth", rec.Label)
	assert.Equal(t, "auth", rec.Tag, "tag defaults to label")
	assert.Equal(t, "logvault-test", rec.AppName)
	assert.Equal(t, `{"attempt":1,"user":"ada"}`, rec.MetadataJSON)
	assert.False(t, rec.Timestamp.IsZero())

	// Caller context is captured from the Record call site.
	assert.Contains(t, rec.File, "service_test.go")
	assert.Contains(t, rec.Function, "TestRecordAndQuery")
	assert.Greater(t, rec.Line, 0)
}

func TestRecordOmitCallerSkipsCapture(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Decoded events have no meaningful call site; the record keeps its
	// caller fields empty instead of pointing at the decode loop.
	svc.Record(RecordParams{
		Level:      event.LevelInfo,
		Message:    "replayed from input",
		OmitCaller: true,
	})
	require.NoError(t, svc.Flush(ctx))

	records, err := svc.Query(ctx, event.LogQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Empty(t, rec.File)
	assert.Empty(t, rec.Function)
	assert.Zero(t, rec.Line)
}

func TestStreamFiltersLikeBulkQuery(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := event.LogQuery{Label: "wanted", MessageSearch: "match"}
	stream := svc.Stream(ctx, &q)

	svc.Record(RecordParams{Level: event.LevelInfo, Message: "match one", Label: "wanted"})
	svc.Record(RecordParams{Level: event.LevelInfo, Message: "match two", Label: "other"})
	svc.Record(RecordParams{Level: event.LevelInfo, Message: "irrelevant", Label: "wanted"})
	svc.Record(RecordParams{Level: event.LevelInfo, Message: "match three", Label: "WANTED"})
	require.NoError(t, svc.Flush(ctx))

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case rec := <-stream:
			got = append(got, rec.Message)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stream delivery")
		}
	}
	assert.Equal(t, []string{"match one", "match three"}, got)
}

func TestStreamWithoutQueryDeliversEverything(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := svc.Stream(ctx, nil)

	for _, msg := range []string{"a", "b", "c"} {
		svc.Record(RecordParams{Level: event.LevelDebug, Message: msg})
	}
	require.NoError(t, svc.Flush(ctx))

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case rec := <-stream:
			got = append(got, rec.Message)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stream delivery")
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStreamMatchesOldestFirstQueryOrder(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := svc.Stream(ctx, nil)

	for i := 0; i < 5; i++ {
		svc.Record(RecordParams{Level: event.LevelInfo, Message: strings.Repeat("x", i+1)})
	}
	require.NoError(t, svc.Flush(ctx))

	var streamed []string
	for i := 0; i < 5; i++ {
		select {
		case rec := <-stream:
			streamed = append(streamed, rec.Message)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stream delivery")
		}
	}

	records, err := svc.Query(ctx, event.LogQuery{Order: event.OldestFirst})
	require.NoError(t, err)
	var queried []string
	for _, rec := range records {
		queried = append(queried, rec.Message)
	}

	assert.Equal(t, queried, streamed, "live order must equal oldest-first bulk order")
}

func TestNavigationHelpers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		svc.Record(RecordParams{Level: event.LevelInfo, Message: msg})
	}
	require.NoError(t, svc.Flush(ctx))

	records, err := svc.Query(ctx, event.LogQuery{Order: event.OldestFirst})
	require.NoError(t, err)
	require.Len(t, records, 3)
	mid := records[1]

	prev, err := svc.Previous(ctx, mid.ID)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "first", prev.Message)

	next, err := svc.Next(ctx, prev.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, mid.ID, next.ID)

	edge, err := svc.Previous(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Nil(t, edge)
}

func TestClearAllAndSize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.Record(RecordParams{Level: event.LevelInfo, Message: "gone soon"})
	require.NoError(t, svc.Flush(ctx))
	require.NoError(t, svc.ClearAll(ctx))

	records, err := svc.Query(ctx, event.LogQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)

	_, ok := svc.SizeBytes()
	assert.False(t, ok, "in-memory store has unknown size")
}

func TestShutdownClosesStreams(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := svc.Stream(ctx, nil)
	require.NoError(t, svc.Shutdown(context.Background()))

	select {
	case _, open := <-stream:
		assert.False(t, open, "stream should close on shutdown")
	case <-time.After(time.Second):
		t.Fatal("stream did not close after shutdown")
	}
}
