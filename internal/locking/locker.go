// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package locking serializes writes per owner. All mutations for a
// single owner go through the same mutex so a store and a forget for
// the same owner never interleave.
package locking

import "sync"

// OwnerLocker hands out one mutex per owner, created on first use.
type OwnerLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOwnerLocker creates an empty locker.
func NewOwnerLocker() *OwnerLocker {
	return &OwnerLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *OwnerLocker) mutexFor(owner string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[owner] = m
	}
	return m
}

// Lock acquires the mutex for an owner, blocking until it is free.
func (l *OwnerLocker) Lock(owner string) {
	l.mutexFor(owner).Lock()
}

// Unlock releases the mutex for an owner.
func (l *OwnerLocker) Unlock(owner string) {
	l.mutexFor(owner).Unlock()
}

// WithLock executes a function while holding the owner's mutex.
func (l *OwnerLocker) WithLock(owner string, fn func() error) error {
	m := l.mutexFor(owner)
	m.Lock()
	defer m.Unlock()

	return fn()
}
