package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig selects level, encoding and destination. The zero value logs
// JSON at info to stderr.
type LoggerConfig struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // json or console
	// Output is a file path. The live dashboard owns the terminal, so point
	// this at a file when running watch interactively.
	Output string
}

// LoggerConfigFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_FILE.
func LoggerConfigFromEnv() LoggerConfig {
	return LoggerConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		Output: os.Getenv("LOG_FILE"),
	}
}

// NewLogger builds the process logger.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Level = parseLogLevel(cfg.Level)

	out := "stderr"
	if p := strings.TrimSpace(cfg.Output); p != "" {
		out = p
	}
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.InitialFields = map[string]interface{}{"app": "weather-dashboard"}

	return zc.Build()
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN", "WARNING":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
