package models

import "time"

// AttemptStatus represents the lifecycle state of one apply attempt
type AttemptStatus string

const (
	StatusPending AttemptStatus = "pending"
	StatusSuccess AttemptStatus = "success"
	StatusFailed  AttemptStatus = "failed"
)

// AppliedRecord is one durable audit row capturing a single apply attempt.
// Records are append-only across attempts: a change that failed and was
// re-attempted accumulates multiple rows. A change counts as applied when at
// least one of its rows carries StatusSuccess.
// Maps to: the state table (MergeTree, ordered by started_at)
type AppliedRecord struct {
	// ID is a synthetic, monotonically increasing primary key minted by the
	// process-owned sequence generator.
	ID int64

	ChangeID      string
	ChangelogPath string
	Kind          ChangeKind
	ScriptPath    string
	Description   string

	StartedAt  time.Time
	FinishedAt time.Time

	Status AttemptStatus

	// DependsOnSnapshot is the JSON-serialized dependency list at attempt time.
	DependsOnSnapshot string

	ErrorMessage string
}

// Identity returns the identity of the change the record belongs to.
func (r *AppliedRecord) Identity() Identity {
	return Identity{ChangelogPath: r.ChangelogPath, ChangeID: r.ChangeID}
}
