package console

import "github.com/jrsteele09/go-auth-flow/flow"

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m"
)

var levelColours = map[flow.Level]string{
	flow.LevelInfo:    Blue,
	flow.LevelSuccess: Green,
	flow.LevelWarning: Yellow,
	flow.LevelError:   Red,
}

// paint wraps s in colour when colour output is enabled
func paint(enabled bool, colour, s string) string {
	if !enabled || colour == "" {
		return s
	}
	return colour + s + ResetColor
}
