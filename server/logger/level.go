package logger

import "fmt"

// Level defines the logging level.
type Level int

const (
	// LevelUnknown is an unknown level.
	LevelUnknown Level = iota - 1

	// LevelDisabled disables logging entirely.
	LevelDisabled

	// LevelError logs only errors.
	LevelError

	// LevelWarn logs warnings and errors.
	LevelWarn

	// LevelInfo logs info, warnings and errors.
	LevelInfo

	// LevelDebug logs everything except trace messages.
	LevelDebug

	// LevelTrace logs everything.
	LevelTrace
)

// String returns a string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	case LevelDisabled:
		return "disabled"
	case LevelUnknown:
		fallthrough
	default:
		return fmt.Sprintf("Unknown(%d)", l)
	}
}

func LevelFromString(str string) (Level, bool) {
	switch str {
	case "error":
		return LevelError, true
	case "warn":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	case "disabled":
		return LevelDisabled, true
	default:
		return LevelUnknown, false
	}
}

// LevelForNamespace implements Config. Using a bare Level as config sets
// the same level for all namespaces.
func (l Level) LevelForNamespace(_ string) Level {
	return l
}
