package plan

import (
	"context"
	"fmt"

	"github.com/altos-data/chmig/common/models"
)

// AppliedSource answers which change identities already have a successful
// apply attempt on record.
type AppliedSource interface {
	AppliedIdentities(ctx context.Context) (map[models.Identity]struct{}, error)
}

// Result is the outcome of diffing the loaded graph against history.
type Result struct {
	// Pending holds every loaded change with no success record, in the
	// loader's traversal order.
	Pending []*models.Change

	// Applied is the set of identities with at least one success record.
	Applied map[models.Identity]struct{}

	// Degraded carries the history query failure when the calculator fell
	// open. Non-nil means Applied is empty and every change was treated as
	// pending; the caller decides whether that is acceptable for the run.
	Degraded error
}

// Calculate issues one bulk history query and subtracts the applied identity
// set from the full change list. A failing history query never drops changes:
// the calculator fails open, reporting everything as pending alongside the
// query error.
func Calculate(ctx context.Context, all []*models.Change, src AppliedSource) *Result {
	applied, err := src.AppliedIdentities(ctx)
	if err != nil {
		pending := make([]*models.Change, len(all))
		copy(pending, all)
		return &Result{
			Pending:  pending,
			Applied:  make(map[models.Identity]struct{}),
			Degraded: fmt.Errorf("history query failed, treating all changes as pending: %w", err),
		}
	}

	pending := make([]*models.Change, 0, len(all))
	for _, change := range all {
		if _, ok := applied[change.Identity()]; ok {
			continue
		}
		pending = append(pending, change)
	}

	return &Result{Pending: pending, Applied: applied}
}

// Universe collects the identity of every loaded change. The resolver needs
// it to distinguish dangling dependency references from real ones.
func Universe(all []*models.Change) map[models.Identity]struct{} {
	universe := make(map[models.Identity]struct{}, len(all))
	for _, change := range all {
		universe[change.Identity()] = struct{}{}
	}
	return universe
}
