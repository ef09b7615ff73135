package idgen

import (
	"sync"
	"time"
)

// Generator mints monotonically increasing, collision-free int64 keys for
// history rows. Keys combine the current UTC millisecond timestamp with an
// intra-millisecond counter, leaving room for 1000 keys per millisecond.
//
// The generator is owned by the process and shared across components; all
// state lives behind the mutex, never at package level.
type Generator struct {
	mu     sync.Mutex
	lastID int64
}

// New creates a new sequence generator.
func New() *Generator {
	return &Generator{}
}

// Next returns the next unique key. Safe for concurrent use.
//
// The key floor is nowMS*1000; when more than 1000 keys are minted within one
// millisecond, or the clock steps backwards, the sequence keeps counting up
// from the last emitted key instead of re-entering keyspace already handed
// out.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := time.Now().UTC().UnixMilli() * 1000
	if id <= g.lastID {
		id = g.lastID + 1
	}
	g.lastID = id

	return id
}
