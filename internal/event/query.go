package event

import "time"

// SortOrder selects result ordering for queries.
type SortOrder string

const (
	NewestFirst SortOrder = "newest"
	OldestFirst SortOrder = "oldest"
)

// LogQuery is a filter/sort/page specification. Zero-value fields mean
// "no filter" for that dimension.
type LogQuery struct {
	From          *time.Time // inclusive lower bound
	To            *time.Time // inclusive upper bound
	Levels        []Level    // empty = all levels
	Label         string     // exact match, case-insensitive
	Tag           string     // exact match, case-sensitive
	AppName       string     // exact match, case-sensitive
	MessageSearch string     // substring, case-insensitive; whitespace-only = no filter
	Order         SortOrder  // defaults to NewestFirst
	Limit         int        // <=0 = unlimited
	Offset        int        // skipped after ordering; applies even without Limit
}

// DropPolicy governs backpressure behavior of the dispatcher queue and how
// often a drop summary is emitted.
type DropPolicy struct {
	// DropBelow is the admission threshold when the queue is full: incoming
	// events below it are dropped, events at or above it evict the oldest
	// queued event instead.
	DropBelow Level
	// ReportInterval enables time-based drop summaries when positive.
	ReportInterval time.Duration
}
