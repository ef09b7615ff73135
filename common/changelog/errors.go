package changelog

import "fmt"

// NotFoundError reports a missing changelog or script file.
type NotFoundError struct {
	// Path is the file that could not be found.
	Path string

	// ReferencedBy is the changelog that referenced it, empty for the master
	// changelog itself.
	ReferencedBy string
}

func (e *NotFoundError) Error() string {
	if e.ReferencedBy == "" {
		return fmt.Sprintf("changelog file not found: %s", e.Path)
	}
	return fmt.Sprintf("file not found: %s (referenced by %s)", e.Path, e.ReferencedBy)
}

// ValidationError reports a malformed changelog entry: unknown type, missing
// required fields, bad dependency shape, or a duplicate identity.
type ValidationError struct {
	ChangelogPath string

	// Position is the 0-based entry index within the file, -1 when the whole
	// file is at fault.
	Position int

	Reason string
}

func (e *ValidationError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("invalid changelog %s: %s", e.ChangelogPath, e.Reason)
	}
	return fmt.Sprintf("invalid entry %d in changelog %s: %s", e.Position, e.ChangelogPath, e.Reason)
}
