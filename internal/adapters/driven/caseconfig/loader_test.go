package caseconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
)

const samplePack = `
cases:
  - name: custom_case
    description: operator-defined variant
    reference:
      - /report
      - /report/finding*
      - /report/finding/label
    mappings:
      - field: labels
        source: //finding/label
        kind: list
        required: true
      - field: issued
        source: /report/issued
        kind: date
    keyword_fields:
      - labels
`

func writePack(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadSingleFile(t *testing.T) {
	path := writePack(t, t.TempDir(), "custom.yaml", samplePack)

	cases, err := NewLoader().Load(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	c := cases[0]
	assert.Equal(t, "custom_case", c.Name)
	assert.Len(t, c.Reference.Tokens, 3)
	require.Len(t, c.Mappings, 2)
	assert.Equal(t, domain.KindList, c.Mappings[0].Kind)
	assert.True(t, c.Mappings[0].Required)
	assert.Equal(t, []string{"labels"}, c.KeywordFields)
	assert.False(t, c.IsFallback())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "b.yaml", samplePack)
	writePack(t, dir, "a.yml", `
cases:
  - name: another_case
    reference:
      - /other
    mappings:
      - field: id
        source: /other/id
        required: true
`)
	// Non-YAML files are ignored.
	writePack(t, dir, "notes.txt", "not a pack")

	cases, err := NewLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	// Files load in sorted order.
	assert.Equal(t, "another_case", cases[0].Name)
	assert.Equal(t, "custom_case", cases[1].Name)
	// Omitted kind defaults to string.
	assert.Equal(t, domain.KindString, cases[0].Mappings[0].Kind)
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "a.yaml", samplePack)
	writePack(t, dir, "b.yaml", samplePack)

	_, err := NewLoader().Load(dir)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		pack string
	}{
		{
			name: "missing case name",
			pack: "cases:\n  - description: unnamed\n",
		},
		{
			name: "unknown kind",
			pack: "cases:\n  - name: x\n    mappings:\n      - field: f\n        source: /f\n        kind: decimal\n",
		},
		{
			name: "mapping without source",
			pack: "cases:\n  - name: x\n    mappings:\n      - field: f\n",
		},
		{
			name: "malformed yaml",
			pack: "cases: [unterminated\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePack(t, t.TempDir(), "bad.yaml", tt.pack)
			_, err := NewLoader().Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultsShipLIDCPack(t *testing.T) {
	cases, err := NewLoader().Defaults()
	require.NoError(t, err)
	require.Len(t, cases, 4)

	byName := make(map[string]domain.ParseCase, len(cases))
	for _, c := range cases {
		byName[c.Name] = c
	}

	complete, ok := byName["lidc_complete"]
	require.True(t, ok)
	assert.NotEmpty(t, complete.Reference.Tokens)
	assert.Contains(t, complete.RequiredFields(), "malignancy")

	for _, name := range []string{"lidc_multi_session", "lidc_single_session", "core_attributes"} {
		c, ok := byName[name]
		require.True(t, ok, name)
		assert.False(t, c.IsFallback(), name)
		assert.NotEmpty(t, c.Mappings, name)
	}
}
