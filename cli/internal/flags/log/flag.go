package log

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"ocm.software/open-component-model/appmodel/cli/internal/flags/enum"
)

const (
	LevelFlag  = "loglevel"
	FormatFlag = "logformat"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

func RegisterLoggingFlags(flags *pflag.FlagSet) {
	enum.Var(flags, LevelFlag, []string{
		"warn",
		"debug",
		"info",
		"error",
	}, "set the log level")
	enum.Var(flags, FormatFlag, []string{FormatText, FormatJSON}, "set the log format")
}

// GetBaseLogger builds the logger configured by the logging flags. Logs are
// written to w so they never mix with command output.
func GetBaseLogger(flags *pflag.FlagSet, w io.Writer) (*slog.Logger, error) {
	level, err := GetLoggerLevel(flags)
	if err != nil {
		return nil, err
	}
	format, err := enum.Get(flags, FormatFlag)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}

func GetLoggerLevel(flags *pflag.FlagSet) (slog.Level, error) {
	logLevel, err := enum.Get(flags, LevelFlag)
	if err != nil {
		return slog.LevelWarn, err
	}
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", logLevel)
	}
	return level, nil
}
