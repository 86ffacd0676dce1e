package services

import "sync"

// OwnerLocks serializes mutations per owner. Each concern (combat state,
// story log) gets its own instance so holding one never blocks the other.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// NewOwnerLocks creates an empty lock table.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{
		locks: make(map[int]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given owner, creating it on first use.
// Locks are never evicted; the table is bounded by the owner population.
func (o *OwnerLocks) Lock(ownerID int) {
	o.get(ownerID).Lock()
}

// Unlock releases the owner's mutex.
func (o *OwnerLocks) Unlock(ownerID int) {
	o.get(ownerID).Unlock()
}

func (o *OwnerLocks) get(ownerID int) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[ownerID] = l
	}
	return l
}
