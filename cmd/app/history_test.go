package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "KYC:1 Photo:2", formatSummary(map[string]int{"Photo": 2, "KYC": 1}))
	assert.Equal(t, "", formatSummary(nil))
}

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HISTORY_SQLITE_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("HISTORY_REDIS_URL", "")
	t.Setenv("LOG_FILE", filepath.Join(dir, "docsort.log"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "list"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "no history")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "clear"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "history cleared")
}

func TestRunRejectsBadFlags(t *testing.T) {
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "docsort.log"))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--export", "tarball", "x.pdf"})
	assert.Error(t, root.Execute())
}
