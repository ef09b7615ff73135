package models

import (
	"encoding/json"
	"fmt"

	"github.com/altos-data/chmig/common/condition"
)

// ChangeKind represents the type of a changelog entry
type ChangeKind string

const (
	// KindSQL is a change backed by a SQL script file
	KindSQL ChangeKind = "sql"

	// KindInclude pulls another changelog file into the load; it never
	// materializes as an executable change
	KindInclude ChangeKind = "yaml"
)

// Identity is the composite key of a change: the changelog file that defines it
// (relative to the project root) plus the change id within that file.
type Identity struct {
	ChangelogPath string
	ChangeID      string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s::%s", id.ChangelogPath, id.ChangeID)
}

// DependencyRef names another change's identity. It may point at an identity
// that is absent from the currently loaded graph; such references are treated
// as already satisfied by the resolver.
type DependencyRef struct {
	ChangelogPath string `yaml:"changelog_path" json:"changelog_path"`
	ChangeID      string `yaml:"change_id" json:"change_id"`
}

// Identity returns the identity the reference points at.
func (d DependencyRef) Identity() Identity {
	return Identity{ChangelogPath: d.ChangelogPath, ChangeID: d.ChangeID}
}

// Change is one unit of schema change parsed out of a changelog file.
// Change values are ephemeral: they are rebuilt fresh on every load.
type Change struct {
	// ChangeID is unique within the defining changelog file. When the entry
	// carries no explicit id the loader derives one from the script name and
	// the entry's position.
	ChangeID string

	// ChangelogPath is the defining changelog file, relative to project root.
	ChangelogPath string

	Kind        ChangeKind
	Description string

	// ScriptPath is the referenced SQL script, relative to project root.
	ScriptPath string

	// PositionIndex is the 0-based position of the entry within its defining
	// file. Unique and monotonic per file.
	PositionIndex int

	// Ordinal is the position of the change in the full depth-first load
	// order across all files. The resolver uses it as the deterministic
	// tie-break.
	Ordinal int

	// DependsOn lists the changes that must be applied before this one.
	DependsOn []DependencyRef

	// Condition is an optional CEL expression over the environment variables.
	// A change whose condition evaluates to false is skipped.
	Condition string

	// CompiledCondition is the compiled form of Condition, populated by the
	// loader so runtime evaluation reuses exactly what was validated at load
	// time.
	CompiledCondition *condition.Condition
}

// Identity returns the change's composite key.
func (c *Change) Identity() Identity {
	return Identity{ChangelogPath: c.ChangelogPath, ChangeID: c.ChangeID}
}

// DependsOnJSON serializes the dependency list for the history snapshot column.
// Returns "[]" when there are no dependencies.
func (c *Change) DependsOnJSON() (string, error) {
	if len(c.DependsOn) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(c.DependsOn)
	if err != nil {
		return "", fmt.Errorf("failed to serialize dependencies for %s: %w", c.Identity(), err)
	}
	return string(raw), nil
}
