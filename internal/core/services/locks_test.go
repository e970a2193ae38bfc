package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lockTableSize(k *keyedMutex) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("room-1")
	assert.Equal(t, 1, lockTableSize(km))
	unlock()
	assert.Equal(t, 0, lockTableSize(km), "an uncontended unlock removes the entry")

	unlock = km.LockPair("room-a", "room-b")
	assert.Equal(t, 2, lockTableSize(km))
	unlock()
	assert.Equal(t, 0, lockTableSize(km))
}

func TestKeyedMutexSerializesHolders(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("shared")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, lockTableSize(km), "no entries survive once all holders are done")
}
