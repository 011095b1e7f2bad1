package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/cli/internal/flags/log"
)

func TestGetBaseLogger(t *testing.T) {
	r := require.New(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	log.RegisterLoggingFlags(fs)

	level, err := log.GetLoggerLevel(fs)
	r.NoError(err)
	r.Equal(slog.LevelWarn, level)

	r.NoError(fs.Parse([]string{"--loglevel", "debug", "--logformat", "json"}))
	var buf bytes.Buffer
	logger, err := log.GetBaseLogger(fs, &buf)
	r.NoError(err)
	logger.Debug("hello", slog.String("key", "value"))

	var entry map[string]any
	r.NoError(json.Unmarshal(buf.Bytes(), &entry))
	r.Equal("hello", entry["msg"])
	r.Equal("DEBUG", entry["level"])
	r.Equal("value", entry["key"])
}
