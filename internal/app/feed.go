package app

import (
	"sync"
	"time"
)

// FeedUpdate types.
const (
	FeedBoard = "board"
)

// FeedUpdate is one push to live-feed subscribers of a lobby.
type FeedUpdate struct {
	Type  string     `json:"type"`
	Board *BoardView `json:"board,omitempty"`
}

// Presence marks lobby liveness in an external store (e.g. Redis) so other
// processes can see which lobbies have live watchers. Optional.
type Presence interface {
	Touch(lobbyID string)
	Release(lobbyID string)
}

// Feed fans board snapshots out to websocket subscribers, one channel per
// connection, keyed by lobby id.
type Feed struct {
	mu           sync.RWMutex
	subscribers  map[string]map[chan FeedUpdate]struct{}
	presence     Presence
	refreshEvery time.Duration
	refreshers   map[string]chan struct{}
}

const defaultPresenceRefresh = time.Minute

func newFeed() *Feed {
	return &Feed{
		subscribers:  make(map[string]map[chan FeedUpdate]struct{}),
		refreshEvery: defaultPresenceRefresh,
		refreshers:   make(map[string]chan struct{}),
	}
}

// Subscribe registers a listener for a lobby's updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(lobbyID string) (<-chan FeedUpdate, func()) {
	ch := make(chan FeedUpdate, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[lobbyID]
	if !ok {
		subs = make(map[chan FeedUpdate]struct{})
		f.subscribers[lobbyID] = subs
		if f.presence != nil {
			f.refreshers[lobbyID] = f.startRefresher(lobbyID)
		}
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	if f.presence != nil {
		f.presence.Touch(lobbyID)
	}

	cancel := func() {
		f.mu.Lock()
		if subs, ok := f.subscribers[lobbyID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.subscribers, lobbyID)
				if stop, ok := f.refreshers[lobbyID]; ok {
					close(stop)
					delete(f.refreshers, lobbyID)
				}
				if f.presence != nil {
					f.presence.Release(lobbyID)
				}
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// startRefresher re-touches the lobby's liveness marker so it outlives the
// marker TTL for as long as subscribers stay connected.
func (f *Feed) startRefresher(lobbyID string) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(f.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.presence.Touch(lobbyID)
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func (f *Feed) hasSubscribers(lobbyID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[lobbyID]) > 0
}

// publish delivers an update to every subscriber, dropping the stale
// message for slow consumers instead of blocking the broadcast.
func (f *Feed) publish(lobbyID string, update FeedUpdate) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers[lobbyID] {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

// Subscribe exposes the lobby feed on the service.
func (s *GameService) Subscribe(lobbyID string) (<-chan FeedUpdate, func()) {
	return s.feed.Subscribe(lobbyID)
}
