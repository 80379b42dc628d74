package app

import "sync"

// lobbyLocks serializes mutating operations per lobby. The store's
// transaction gives atomicity; this gives the cross-transaction ordering
// the invariants need when the isolation level is weaker than serializable.
type lobbyLocks struct {
	mu    sync.Mutex
	locks map[string]*lobbyLock
}

type lobbyLock struct {
	mu   sync.Mutex
	refs int
}

func newLobbyLocks() *lobbyLocks {
	return &lobbyLocks{locks: make(map[string]*lobbyLock)}
}

// lock acquires the lobby's mutex and returns its unlock func. Entries are
// reference counted so the map does not grow with dead lobbies.
func (l *lobbyLocks) lock(lobbyID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[lobbyID]
	if !ok {
		entry = &lobbyLock{}
		l.locks[lobbyID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, lobbyID)
		}
		l.mu.Unlock()
	}
}
