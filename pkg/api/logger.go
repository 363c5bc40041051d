package api

import "context"

// LogLevel is the severity passed to a Logger.
type LogLevel int

const (
	LevelDebug LogLevel = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Log message types emitted by the engine.
const (
	LogTypeWorkflow = "WORKFLOW"
	LogTypeStep     = "STEP"
	LogTypeSnapshot = "SNAPSHOT"
)

// LogMessage is a single structured log entry.
type LogMessage struct {
	Type            string
	Message         string
	WorkflowName    string
	DestinationPath string
	StepID          string
	Data            any
	RunID           string
}

// Logger receives engine log messages. A nil Logger disables logging.
type Logger interface {
	Log(ctx context.Context, level LogLevel, msg LogMessage)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ctx context.Context, level LogLevel, msg LogMessage)

func (f LoggerFunc) Log(ctx context.Context, level LogLevel, msg LogMessage) {
	f(ctx, level, msg)
}
