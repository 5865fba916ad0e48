package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")

	l := NewFileLogger(path, false)
	l.Info("pushchannel", "connected", map[string]interface{}{"attempt": 0})
	l.Debug("pushchannel", "hidden below info", nil)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "connected", entry["message"])
	assert.Equal(t, "pushchannel", entry["module"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Error("any", "dropped", map[string]interface{}{"error": "boom"})
	assert.NoError(t, l.Sync())
}
