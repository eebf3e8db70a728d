package event

import "fmt"

// Level is the severity of a log event. Levels are totally ordered:
// trace < debug < info < notice < warning < error < critical.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{
	LevelTrace:    "trace",
	LevelDebug:    "debug",
	LevelInfo:     "info",
	LevelNotice:   "notice",
	LevelWarning:  "warning",
	LevelError:    "error",
	LevelCritical: "critical",
}

func (l Level) String() string {
	if l < LevelTrace || l > LevelCritical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a level name back to its Level. Names are matched exactly.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown level %q", name)
}

// AllLevels returns every level in ascending severity order.
func AllLevels() []Level {
	out := make([]Level, len(levelNames))
	for i := range levelNames {
		out[i] = Level(i)
	}
	return out
}
