// internal/lock/keyed.go
package lock

import (
    "context"
    "sync"
)

// KeyedMutex serializes work per key (customer id) while leaving
// different keys fully concurrent. Entries are reference counted and
// dropped once the last waiter releases, so the table stays bounded by
// the number of in-flight customers.
//
// This is only the hot-path serializer; across instances the store's
// compare-and-set is the final arbiter.
type KeyedMutex struct {
    mu      sync.Mutex
    entries map[string]*entry
}

type entry struct {
    sem  chan struct{}
    refs int
}

func NewKeyedMutex() *KeyedMutex {
    return &KeyedMutex{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx expires. The
// returned release function must be called exactly once.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
    m.mu.Lock()
    e, ok := m.entries[key]
    if !ok {
        e = &entry{sem: make(chan struct{}, 1)}
        m.entries[key] = e
    }
    e.refs++
    m.mu.Unlock()

    select {
    case e.sem <- struct{}{}:
        return func() {
            <-e.sem
            m.put(key, e)
        }, nil
    case <-ctx.Done():
        m.put(key, e)
        return nil, ctx.Err()
    }
}

func (m *KeyedMutex) put(key string, e *entry) {
    m.mu.Lock()
    e.refs--
    if e.refs == 0 {
        delete(m.entries, key)
    }
    m.mu.Unlock()
}
