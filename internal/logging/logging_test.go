package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := New("warn", "json", path)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "file_id", "f1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "f1", line["file_id"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, _, err := New("loud", "json", "stdout")
	assert.Error(t, err)

	_, _, err = New("info", "xml", "stderr")
	assert.Error(t, err)
}
