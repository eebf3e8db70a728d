// Package query translates a LogQuery into an executable SQL plan.
//
// The translation is pure and deterministic: the same LogQuery always yields
// the same predicate, ordering and pagination. Both bulk queries and the
// id-scoped variant used by live streams go through Build, so the two can
// never disagree about what matches a filter.
package query

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/logvault/internal/event"
)

// Plan is an executable rendering of a LogQuery.
type Plan struct {
	Where   string // WHERE clause without the keyword; empty when unfiltered
	Args    []any
	OrderBy string // ORDER BY clause without the keyword
	Paging  string // LIMIT/OFFSET tail; empty when unbounded
}

// Build translates q into a Plan.
func Build(q event.LogQuery) Plan {
	var conds []string
	var args []any

	if q.From != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, event.FormatTime(*q.From))
	}
	if q.To != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, event.FormatTime(*q.To))
	}
	if lv := levelFilter(q.Levels); lv != nil {
		placeholders := strings.Repeat("?,", len(lv))
		conds = append(conds, "level IN ("+placeholders[:len(placeholders)-1]+")")
		for _, l := range lv {
			args = append(args, l.String())
		}
	}
	if q.Label != "" {
		conds = append(conds, "label = ? COLLATE NOCASE")
		args = append(args, q.Label)
	}
	if q.Tag != "" {
		conds = append(conds, "tag = ?")
		args = append(args, q.Tag)
	}
	if q.AppName != "" {
		conds = append(conds, "app_name = ?")
		args = append(args, q.AppName)
	}
	if s := strings.TrimSpace(q.MessageSearch); s != "" {
		conds = append(conds, `message LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(s)+"%")
	}

	return Plan{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: orderBy(q.Order),
		Paging:  paging(q.Limit, q.Offset),
	}
}

// BuildWithIDs is Build restricted to a set of record ids. It reports false
// when ids is empty, in which case nothing can match and storage need not be
// touched.
func BuildWithIDs(q event.LogQuery, ids []int64) (Plan, bool) {
	if len(ids) == 0 {
		return Plan{}, false
	}
	p := Build(q)
	placeholders := strings.Repeat("?,", len(ids))
	cond := "id IN (" + placeholders[:len(placeholders)-1] + ")"
	if p.Where == "" {
		p.Where = cond
	} else {
		p.Where = p.Where + " AND " + cond
	}
	for _, id := range ids {
		p.Args = append(p.Args, id)
	}
	return p, true
}

// levelFilter returns the levels to filter on, or nil when the set is empty
// or covers every level (both mean "no filter").
func levelFilter(levels []event.Level) []event.Level {
	if len(levels) == 0 {
		return nil
	}
	seen := make(map[event.Level]struct{}, len(levels))
	var distinct []event.Level
	for _, l := range levels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		distinct = append(distinct, l)
	}
	if len(distinct) == len(event.AllLevels()) {
		return nil
	}
	return distinct
}

// orderBy always includes id as tie-break so ordering is total even when
// many records share one timestamp.
func orderBy(o event.SortOrder) string {
	if o == event.OldestFirst {
		return "timestamp ASC, id ASC"
	}
	return "timestamp DESC, id DESC"
}

// paging renders LIMIT/OFFSET. SQLite needs LIMIT -1 to express an offset
// without a cap.
func paging(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

// escapeLike escapes LIKE metacharacters so user input always matches as
// literal text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
