package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCmd_WritesJSONToStdout(t *testing.T) {
	store, cleanup := setupTestServices(t)
	defer cleanup()

	seedDocument(t, store, "scan_001.xml", "header_only")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"export"})

	require.NoError(t, rootCmd.Execute())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "scan_001.xml", rows[0]["source_identifier"])
	assert.Contains(t, rows[0], "content")
	assert.Contains(t, rows[0], "keywords")
}

func TestExportCmd_WritesFile(t *testing.T) {
	store, cleanup := setupTestServices(t)
	defer cleanup()

	seedDocument(t, store, "scan_001.xml", "header_only")

	out := filepath.Join(t.TempDir(), "export.json")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"export", "--out", out})
	defer func() { exportOut = "" }()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Wrote 1 record(s)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scan_001.xml")
}

func TestExportCmd_CaseFilter(t *testing.T) {
	store, cleanup := setupTestServices(t)
	defer cleanup()

	seedDocument(t, store, "scan_001.xml", "header_only")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"export", "--case", "other_case"})
	defer func() { exportCase = "" }()

	require.NoError(t, rootCmd.Execute())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Empty(t, rows)
}
