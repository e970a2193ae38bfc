// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import "sync"

// keyedMutex provides per-key mutual exclusion. Room, message and agent
// mutations are guarded per id so unrelated entities never serialize each
// other. Entries are refcounted and dropped once the last holder unlocks,
// so the registry is bounded by the number of in-flight operations.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) get(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedMutex) put(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return func() {
		l.Unlock()
		k.put(key, l)
	}
}

// LockPair acquires both keys in lexicographic order so concurrent
// cross-entity operations can never deadlock.
func (k *keyedMutex) LockPair(a, b string) func() {
	if a == b {
		return k.Lock(a)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	l1, l2 := k.get(first), k.get(second)
	l1.Lock()
	l2.Lock()
	return func() {
		l2.Unlock()
		l1.Unlock()
		k.put(second, l2)
		k.put(first, l1)
	}
}
