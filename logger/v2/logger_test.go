package v2

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestJSONEntriesCarryFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Writer: &buf})
	require.NoError(t, err)

	child := logger.With(String("tool", "api_getUser"))
	child.Info("executing", Int("status", 200), Duration("took", 1500*time.Millisecond))
	child.Error("failed", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "executing", first["msg"])
	assert.Equal(t, "api_getUser", first["tool"])
	assert.Equal(t, float64(200), first["status"])
	assert.Equal(t, "1.5s", first["took"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "boom", second["error"])
	assert.Equal(t, "api_getUser", second["tool"])
}

func TestWithDoesNotLeakBetweenSiblings(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	parent := logger.With(String("a", "1"))
	left := parent.With(String("b", "left"))
	_ = parent.With(String("b", "right"))
	left.Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "left", entry["b"])
}

func TestToStdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	ToStdLogger(logger, "stdio: ").Println("read error")
	assert.Contains(t, buf.String(), "stdio: read error")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestSecretMasksCredentials(t *testing.T) {
	assert.Equal(t, "****", Secret("k", "short").Value)
	assert.Equal(t, "****cdef", Secret("k", "0123456789abcdef").Value)
}
