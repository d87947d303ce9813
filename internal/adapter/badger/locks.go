package badger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// personaLocks hands out one exclusive lock per persona. Slots are created on
// demand and dropped once nobody holds or waits for them. The zero value is
// ready to use.
type personaLocks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// acquire blocks until the lock of id is free or ctx is done. The returned
// func releases the lock and must be called exactly once.
func (l *personaLocks) acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[uuid.UUID]*lockSlot)
	}
	s, ok := l.slots[id]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.drop(id, s)
		}, nil
	case <-ctx.Done():
		l.drop(id, s)
		return nil, ctx.Err()
	}
}

func (l *personaLocks) drop(id uuid.UUID, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}
