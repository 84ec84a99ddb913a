package logs_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/logs"
)

func TestNew_WritesJSONToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payoutd.log")

	cfg := &config.Config{}
	cfg.App = config.AppConfig{Name: "payoutd", Version: "1.2.3"}
	cfg.Server.Environment = "production"
	cfg.Logging.Level = "warn"
	cfg.Logging.Output.File = config.FileLogConfig{Enabled: true, Path: path, MaxSizeMB: 1}

	logger := logs.New(cfg)
	logger.Info("dropped below level")
	logger.Warn("lessons without master", slog.String("coach_id", "coach-1"), slog.Int("count", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "lessons without master", entry["msg"])
	assert.Equal(t, "coach-1", entry["coach_id"])
	assert.Equal(t, "payoutd", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "production", entry["env"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logs.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logs.ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, logs.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logs.ParseLevel(""))
}
