package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesStructuredLines(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "docsort.log")
	require.NoError(t, Init(Options{Level: "info", File: file, MaxSizeMB: 1, Console: &console}))
	defer Close()

	log.Debug().Msg("hidden")
	Component("export").Info().Str("mode", "merged").Msg("export complete")

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	require.Len(t, lines, 1)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "docsort", ev["service"])
	assert.Equal(t, "export", ev["component"])
	assert.Equal(t, "merged", ev["mode"])
	assert.Equal(t, "info", ev["level"])

	onDisk, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "export complete")
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, Init(Options{Level: "loud", Service: "docsort-test", Console: &console}))
	defer Close()

	log.Debug().Msg("hidden")
	Component("history").Warn().Msg("shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), `"service":"docsort-test"`)
	assert.Contains(t, console.String(), `"component":"history"`)
}

func TestComponent_BeforeInitIsSilent(t *testing.T) {
	global = zerolog.Nop()
	l := Component("ingest")
	require.NotNil(t, l)
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
}
