package businessflow

import (
	"fmt"
	"sync"

	"github.com/arvand/adpilot/models"
)

// entityLocks serializes mutations per entity within one process. Two rules
// matching the same entity in a run must not interleave their platform calls.
// Entries are refcounted and removed once the last holder unlocks, so the map
// only holds keys for entities currently being mutated.
var (
	entityLocksMu sync.Mutex
	entityLocks   = make(map[string]*entityLock)
)

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func entityLockKey(kind models.ScopeKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func lockEntity(kind models.ScopeKind, id uint) {
	key := entityLockKey(kind, id)

	entityLocksMu.Lock()
	l, ok := entityLocks[key]
	if !ok {
		l = &entityLock{}
		entityLocks[key] = l
	}
	l.refs++
	entityLocksMu.Unlock()

	l.mu.Lock()
}

func unlockEntity(kind models.ScopeKind, id uint) {
	key := entityLockKey(kind, id)

	entityLocksMu.Lock()
	l, ok := entityLocks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(entityLocks, key)
		}
	}
	entityLocksMu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
