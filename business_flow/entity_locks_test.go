package businessflow

import (
	"sync"
	"testing"

	"github.com/arvand/adpilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityLockCount() int {
	entityLocksMu.Lock()
	defer entityLocksMu.Unlock()
	return len(entityLocks)
}

func TestEntityLocksPrunedAfterRelease(t *testing.T) {
	before := entityLockCount()

	lockEntity(models.ScopeKindCampaign, 1)
	lockEntity(models.ScopeKindAd, 2)
	assert.Equal(t, before+2, entityLockCount())

	unlockEntity(models.ScopeKindCampaign, 1)
	unlockEntity(models.ScopeKindAd, 2)
	assert.Equal(t, before, entityLockCount())

	t.Run("ContendedKeyReleasedByLastHolder", func(t *testing.T) {
		const workers = 8
		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			holders     int
			overlapping bool
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lockEntity(models.ScopeKindAdSet, 9)
				mu.Lock()
				holders++
				if holders > 1 {
					overlapping = true
				}
				holders--
				mu.Unlock()
				unlockEntity(models.ScopeKindAdSet, 9)
			}()
		}
		wg.Wait()
		require.False(t, overlapping)
		assert.Equal(t, before, entityLockCount())
	})
}
