package services

import (
	"sync"
	"time"

	"github.com/tableflow/reservation-app/apperr"
)

// TableLocks serializes every status-affecting operation on a single table:
// reservation writes, manual status changes and reconciliation all acquire
// the same per-table lock before their read-modify-write sequence. Locks
// are per table, never global, so unrelated tables proceed concurrently.
type TableLocks struct {
	mu    sync.Mutex
	locks map[uint]chan struct{}
}

func NewTableLocks() *TableLocks {
	return &TableLocks{locks: make(map[uint]chan struct{})}
}

func (l *TableLocks) lock(tableID uint) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[tableID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[tableID] = ch
	}
	return ch
}

// Acquire takes the lock for tableID, waiting at most wait. On timeout it
// returns a Conflict error so the caller fails fast instead of blocking.
func (l *TableLocks) Acquire(tableID uint, wait time.Duration) error {
	ch := l.lock(tableID)
	select {
	case ch <- struct{}{}:
		return nil
	case <-time.After(wait):
		return apperr.Conflict("table %d is busy, please retry", tableID)
	}
}

// Release frees the lock for tableID. Must only be called after a
// successful Acquire.
func (l *TableLocks) Release(tableID uint) {
	<-l.lock(tableID)
}
