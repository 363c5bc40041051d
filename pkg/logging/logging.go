// Package logging adapts log/slog and zap loggers to api.Logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/petrijr/stepflow/pkg/api"
)

// ParseLevel maps "debug", "warn" and "error" to their level. Anything
// else is info.
func ParseLevel(level string) api.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return api.LevelDebug
	case "warn", "warning":
		return api.LevelWarn
	case "error":
		return api.LevelError
	default:
		return api.LevelInfo
	}
}

func slogLevel(l api.LogLevel) slog.Level {
	switch l {
	case api.LevelDebug:
		return slog.LevelDebug
	case api.LevelWarn:
		return slog.LevelWarn
	case api.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewSlogLogger writes JSON log lines at or above level to w. A nil w
// means stderr.
func NewSlogLogger(level string, w io.Writer) api.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slogLevel(ParseLevel(level)),
	})
	return FromSlog(slog.New(handler))
}

// FromSlog adapts an existing slog.Logger.
func FromSlog(logger *slog.Logger) api.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Log(ctx context.Context, level api.LogLevel, msg api.LogMessage) {
	attrs := []slog.Attr{
		slog.String("type", msg.Type),
		slog.String("workflow", msg.WorkflowName),
		slog.String("destination", msg.DestinationPath),
		slog.String("run_id", msg.RunID),
	}
	if msg.StepID != "" {
		attrs = append(attrs, slog.String("step_id", msg.StepID))
	}
	if msg.Data != nil {
		attrs = append(attrs, slog.Any("data", msg.Data))
	}
	l.logger.LogAttrs(ctx, slogLevel(level), msg.Message, attrs...)
}

func zapLevel(l api.LogLevel) zapcore.Level {
	switch l {
	case api.LevelDebug:
		return zapcore.DebugLevel
	case api.LevelWarn:
		return zapcore.WarnLevel
	case api.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZap builds a JSON zap logger writing to w (stderr when nil) and
// adapts it.
func NewZap(level string, w io.Writer) api.Logger {
	if w == nil {
		w = os.Stderr
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapLevel(ParseLevel(level)),
	)
	return NewZapLogger(zap.New(core))
}

// NewZapLogger adapts an existing zap.Logger.
func NewZapLogger(logger *zap.Logger) api.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return &zapLogger{logger: logger.Named("stepflow")}
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Log(_ context.Context, level api.LogLevel, msg api.LogMessage) {
	ce := l.logger.Check(zapLevel(level), msg.Message)
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("type", msg.Type),
		zap.String("workflow", msg.WorkflowName),
		zap.String("destination", msg.DestinationPath),
		zap.String("run_id", msg.RunID),
	}
	if msg.StepID != "" {
		fields = append(fields, zap.String("step_id", msg.StepID))
	}
	if msg.Data != nil {
		fields = append(fields, zap.Any("data", msg.Data))
	}
	ce.Write(fields...)
}
