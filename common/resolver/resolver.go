package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/altos-data/chmig/common/models"
)

// CyclicDependencyError reports an unresolved dependency cycle among pending
// changes, naming every identity trapped in it.
type CyclicDependencyError struct {
	Identities []models.Identity
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, len(e.Identities))
	for i, id := range e.Identities {
		names[i] = id.String()
	}
	return fmt.Sprintf("cyclic dependency among changes: %s", strings.Join(names, ", "))
}

// Resolve reorders the pending changes so every still-relevant dependency
// runs before its dependents.
//
// An edge D->C is created only when D's identity exists in the loaded
// universe AND has no success record. References to unknown identities, or to
// identities already applied, are treated as satisfied and create no edge.
// Collapsing this rule to "always add the edge" would wrongly block changes
// whose dependencies were satisfied in an earlier run.
//
// Ordering is deterministic: ready nodes are consumed in the loader's
// traversal order, so an unchanged input always resolves to the same
// sequence.
func Resolve(pending []*models.Change, universe, applied map[models.Identity]struct{}) ([]*models.Change, error) {
	byIdentity := make(map[models.Identity]*models.Change, len(pending))
	for _, change := range pending {
		byIdentity[change.Identity()] = change
	}

	identityHash := func(id models.Identity) models.Identity { return id }
	g := graph.New(identityHash, graph.Directed())

	for _, change := range pending {
		if err := g.AddVertex(change.Identity()); err != nil {
			return nil, fmt.Errorf("failed to add change %s to dependency graph: %w", change.Identity(), err)
		}
	}

	for _, change := range pending {
		for _, dep := range change.DependsOn {
			depID := dep.Identity()

			if _, known := universe[depID]; !known {
				continue // dangling reference, treated as satisfied
			}
			if _, done := applied[depID]; done {
				continue // already applied in a prior run
			}

			if err := g.AddEdge(depID, change.Identity()); err != nil {
				if errors.Is(err, graph.ErrEdgeAlreadyExists) {
					continue
				}
				return nil, fmt.Errorf("failed to add dependency edge %s -> %s: %w", depID, change.Identity(), err)
			}
		}
	}

	predecessors, err := g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("failed to compute predecessor map: %w", err)
	}
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to compute adjacency map: %w", err)
	}

	inDegree := make(map[models.Identity]int, len(pending))
	for id, preds := range predecessors {
		inDegree[id] = len(preds)
	}

	// Kahn's algorithm; the ready queue is kept in traversal order so ties
	// always break the same way.
	var ready []*models.Change
	for _, change := range pending {
		if inDegree[change.Identity()] == 0 {
			ready = append(ready, change)
		}
	}
	sortByOrdinal(ready)

	resolved := make([]*models.Change, 0, len(pending))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		resolved = append(resolved, next)

		for succ := range adjacency[next.Identity()] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = insertByOrdinal(ready, byIdentity[succ])
			}
		}
	}

	if len(resolved) < len(pending) {
		var cyclic []*models.Change
		for _, change := range pending {
			if inDegree[change.Identity()] > 0 {
				cyclic = append(cyclic, change)
			}
		}
		sortByOrdinal(cyclic)

		identities := make([]models.Identity, len(cyclic))
		for i, change := range cyclic {
			identities[i] = change.Identity()
		}
		return nil, &CyclicDependencyError{Identities: identities}
	}

	return resolved, nil
}

func sortByOrdinal(changes []*models.Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Ordinal < changes[j].Ordinal
	})
}

func insertByOrdinal(changes []*models.Change, change *models.Change) []*models.Change {
	pos := sort.Search(len(changes), func(i int) bool {
		return changes[i].Ordinal > change.Ordinal
	})
	changes = append(changes, nil)
	copy(changes[pos+1:], changes[pos:])
	changes[pos] = change
	return changes
}
