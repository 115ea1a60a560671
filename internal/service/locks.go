package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// CustomerLocks serializes work on a single customer's cart across the
// cart, order and payment services. Entries are dropped once nobody holds
// or waits on them.
type CustomerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*customerLock
}

type customerLock struct {
	mu   sync.Mutex
	refs int
}

func NewCustomerLocks() *CustomerLocks {
	return &CustomerLocks{locks: make(map[uuid.UUID]*customerLock)}
}

// Lock blocks until the customer's lock is held and returns its release func.
func (l *CustomerLocks) Lock(customerID uuid.UUID) func() {
	l.mu.Lock()
	cl, ok := l.locks[customerID]
	if !ok {
		cl = &customerLock{}
		l.locks[customerID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			cl.mu.Unlock()

			l.mu.Lock()
			cl.refs--
			if cl.refs == 0 {
				delete(l.locks, customerID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *CustomerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
