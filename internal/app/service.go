package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"buzzboard/internal/domain"

	"github.com/google/uuid"
)

// GameService contains the core lobby, board, buzzer, and ledger use cases.
// Every mutating operation runs inside one store transaction under a
// per-lobby lock, so the single-active-question and one-buzz-per-participant
// invariants hold even when the store's isolation level alone would not
// guarantee them.
type GameService struct {
	store   Store
	catalog CatalogRepository
	locks   *lobbyLocks
	feed    *Feed
	now     func() time.Time
	newID   func() string
	rnd     *rand.Rand
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithIDGenerator injects a deterministic ID source for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *GameService) { s.newID = newID }
}

// WithRandSource seeds the lobby-code generator for tests.
func WithRandSource(src rand.Source) Option {
	return func(s *GameService) { s.rnd = rand.New(src) }
}

// WithPresence attaches a presence marker to the live feed, re-touched at
// refreshEvery while a lobby has subscribers. refreshEvery must stay below
// the marker's TTL; zero keeps the default of one minute.
func WithPresence(p Presence, refreshEvery time.Duration) Option {
	return func(s *GameService) {
		s.feed.presence = p
		if refreshEvery > 0 {
			s.feed.refreshEvery = refreshEvery
		}
	}
}

func NewGameService(store Store, catalog CatalogRepository, opts ...Option) *GameService {
	s := &GameService{
		store:   store,
		catalog: catalog,
		locks:   newLobbyLocks(),
		feed:    newFeed(),
		now:     time.Now,
		newID:   uuid.NewString,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireAdmin resolves the acting user's admin participant in the lobby.
func requireAdmin(ctx context.Context, tx Tx, lobbyID, userID string) (*domain.Participant, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	p, err := tx.ParticipantByLobbyUser(ctx, lobbyID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Role != domain.RoleAdmin {
		return nil, domain.ErrAdminRequired
	}
	return p, nil
}

// requireMember resolves the caller's participant record in the lobby.
func requireMember(ctx context.Context, tx Tx, lobbyID, userID string) (*domain.Participant, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	p, err := tx.ParticipantByLobbyUser(ctx, lobbyID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotAMember
	}
	return p, nil
}

// publishBoard pushes a fresh board snapshot to live-feed subscribers.
// Best effort: feed failures never affect the committed operation.
func (s *GameService) publishBoard(ctx context.Context, lobbyID string) {
	if !s.feed.hasSubscribers(lobbyID) {
		return
	}
	view, err := s.buildBoardView(ctx, lobbyID)
	if err != nil {
		log.Printf("board feed for lobby %s: %v", lobbyID, err)
		return
	}
	s.feed.publish(lobbyID, FeedUpdate{Type: FeedBoard, Board: view})
}
