package changelog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altos-data/chmig/common/logger"
	"github.com/altos-data/chmig/common/models"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

// writeTree creates changelogs and scripts under a temp project root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func loadTree(t *testing.T, files map[string]string) ([]*models.Change, error) {
	t.Helper()
	root := writeTree(t, files)
	loader, err := NewLoader(filepath.Join(root, "master.yaml"), testLogger())
	require.NoError(t, err)
	return loader.Load()
}

func TestLoadSingleFile(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: create_events
    type: sql
    description: events table
    file: sql/001_init.sql
  - type: sql
    file: sql/002_views.sql
`,
		"sql/001_init.sql":  "CREATE TABLE events (id UInt64) ENGINE = MergeTree() ORDER BY id",
		"sql/002_views.sql": "CREATE VIEW v_events AS SELECT * FROM events",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, "create_events", changes[0].ChangeID)
	assert.Equal(t, "master.yaml", changes[0].ChangelogPath)
	assert.Equal(t, models.KindSQL, changes[0].Kind)
	assert.Equal(t, "sql/001_init.sql", changes[0].ScriptPath)
	assert.Equal(t, 0, changes[0].PositionIndex)
	assert.Equal(t, 0, changes[0].Ordinal)

	assert.Equal(t, 1, changes[1].PositionIndex)
	assert.Equal(t, 1, changes[1].Ordinal)
}

func TestDefaultIDDerivation(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - type: sql
    file: 001_init.sql
`,
		"001_init.sql": "SELECT 1",
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "001_init_0", changes[0].ChangeID)
}

func TestIncludeRecursion(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: a.sql
  - type: yaml
    file: child/child.yaml
`,
		"child/child.yaml": `
changes:
  - id: b
    type: sql
    file: b.sql
`,
		"a.sql":       "SELECT 'a'",
		"child/b.sql": "SELECT 'b'",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// Changes found through an include belong to the included file.
	assert.Equal(t, "a", changes[0].ChangeID)
	assert.Equal(t, "master.yaml", changes[0].ChangelogPath)
	assert.Equal(t, "b", changes[1].ChangeID)
	assert.Equal(t, "child/child.yaml", changes[1].ChangelogPath)
	assert.Equal(t, "child/b.sql", changes[1].ScriptPath)

	// Position is per file, ordinal is global.
	assert.Equal(t, 0, changes[1].PositionIndex)
	assert.Equal(t, 1, changes[1].Ordinal)
}

func TestCircularIncludeIsSilentNoOp(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: a.sql
  - type: yaml
    file: other.yaml
`,
		"other.yaml": `
changes:
  - id: b
    type: sql
    file: b.sql
  - type: yaml
    file: master.yaml
`,
		"a.sql": "SELECT 'a'",
		"b.sql": "SELECT 'b'",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].ChangeID)
	assert.Equal(t, "b", changes[1].ChangeID)
}

func TestRepeatedIncludeParsedOnce(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - type: yaml
    file: shared.yaml
  - type: yaml
    file: shared.yaml
`,
		"shared.yaml": `
changes:
  - id: once
    type: sql
    file: once.sql
`,
		"once.sql": "SELECT 1",
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
}

func TestMissingScriptFile(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: missing.sql
`,
	})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing.sql", notFound.Path)
	assert.Equal(t, "master.yaml", notFound.ReferencedBy)
}

func TestMissingMasterChangelog(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestUnknownChangeType(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: python
    file: a.py
`,
	})
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "master.yaml", invalid.ChangelogPath)
	assert.Equal(t, 0, invalid.Position)
	assert.Contains(t, invalid.Reason, "python")
}

func TestDependencyMissingFields(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: a.sql
    depends_on:
      - change_id: b
`,
		"a.sql": "SELECT 1",
	})
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "changelog_path")
}

func TestDuplicateIdentityRejected(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: same
    type: sql
    file: a.sql
  - id: same
    type: sql
    file: b.sql
`,
		"a.sql": "SELECT 1",
		"b.sql": "SELECT 2",
	})
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "duplicate")
}

func TestDependenciesParsed(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: a.sql
  - id: b
    type: sql
    file: b.sql
    depends_on:
      - changelog_path: master.yaml
        change_id: a
`,
		"a.sql": "SELECT 1",
		"b.sql": "SELECT 2",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Len(t, changes[1].DependsOn, 1)
	assert.Equal(t, models.Identity{ChangelogPath: "master.yaml", ChangeID: "a"}, changes[1].DependsOn[0].Identity())
}

func TestConditionCompiledAtLoad(t *testing.T) {
	changes, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: guarded
    type: sql
    file: a.sql
    condition: vars.env == "prd"
  - id: plain
    type: sql
    file: b.sql
`,
		"a.sql": "SELECT 1",
		"b.sql": "SELECT 2",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.NotNil(t, changes[0].CompiledCondition)
	assert.Nil(t, changes[1].CompiledCondition)
}

func TestInvalidConditionRejectedAtLoad(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": `
changes:
  - id: a
    type: sql
    file: a.sql
    condition: "vars.env =="
`,
		"a.sql": "SELECT 1",
	})
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
}

func TestMalformedYAML(t *testing.T) {
	_, err := loadTree(t, map[string]string{
		"master.yaml": "changes: [not, a, mapping",
	})
	var invalid *ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, -1, invalid.Position)
}
