package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetFormat("text")
		SetLevel(INFO)
	})
	return buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestInfoCF_JSONCarriesComponentAndFields(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")

	InfoCF("consolidation", "pattern created", map[string]interface{}{"pattern_id": "pat-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "consolidation", line["component"])
	assert.Equal(t, "pat-1", line["pattern_id"])
	assert.Equal(t, "pattern created", line["msg"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(INFO)

	DebugCF("detector", "hidden", nil)
	assert.Empty(t, buf.String())

	SetLevel(DEBUG)
	DebugC("detector", "visible")
	assert.True(t, strings.Contains(buf.String(), "visible"))
}
