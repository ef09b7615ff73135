package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityString(t *testing.T) {
	id := Identity{ChangelogPath: "child/child.yaml", ChangeID: "create_events"}
	assert.Equal(t, "child/child.yaml::create_events", id.String())
}

func TestDependsOnJSON(t *testing.T) {
	change := &Change{
		ChangeID:      "b",
		ChangelogPath: "master.yaml",
		DependsOn: []DependencyRef{
			{ChangelogPath: "master.yaml", ChangeID: "a"},
		},
	}

	snapshot, err := change.DependsOnJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"changelog_path":"master.yaml","change_id":"a"}]`, snapshot)
}

func TestDependsOnJSONEmpty(t *testing.T) {
	change := &Change{ChangeID: "a", ChangelogPath: "master.yaml"}
	snapshot, err := change.DependsOnJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", snapshot)
}
