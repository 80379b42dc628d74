// Package memory provides in-process implementations of the store
// interfaces for tests and cache-less development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/domain"
)

// Store is a mutex-guarded in-memory implementation of app.Store. Each
// method is atomic; cross-method atomicity comes from the service layer,
// which validates before writing and holds a per-lobby lock around every
// mutating operation.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*domain.User
	lobbies      map[string]*domain.Lobby
	participants map[string]*domain.Participant
	questions    []*domain.Question
	states       map[string]*domain.QuestionState
	attempts     map[string]*domain.BuzzerAttempt
	events       []*domain.ScoreEvent
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*domain.User),
		lobbies:      make(map[string]*domain.Lobby),
		participants: make(map[string]*domain.Participant),
		states:       make(map[string]*domain.QuestionState),
		attempts:     make(map[string]*domain.BuzzerAttempt),
	}
}

// RunInTx runs fn against the store directly; see the Store doc for the
// atomicity discipline.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return fn(ctx, s)
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateLobby(_ context.Context, lobby *domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := *lobby
	l.Participants = nil
	s.lobbies[l.ID] = &l
	return nil
}

func (s *Store) UpdateLobby(_ context.Context, lobby *domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := *lobby
	l.Participants = nil
	s.lobbies[l.ID] = &l
	return nil
}

func (s *Store) LobbyByID(_ context.Context, id string) (*domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.lobbies[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (s *Store) LobbyByCode(_ context.Context, code string) (*domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lobbies {
		if l.Code == code {
			copied := *l
			copied.Participants = s.participantsLocked(l.ID)
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) ListLobbiesForUser(_ context.Context, userID string) ([]*domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var lobbies []*domain.Lobby
	for _, p := range s.participants {
		if p.UserID != userID || seen[p.LobbyID] {
			continue
		}
		seen[p.LobbyID] = true
		if l, ok := s.lobbies[p.LobbyID]; ok {
			copied := *l
			copied.Participants = s.participantsLocked(l.ID)
			lobbies = append(lobbies, &copied)
		}
	}
	sort.Slice(lobbies, func(i, j int) bool {
		if !lobbies[i].UpdatedAt.Equal(lobbies[j].UpdatedAt) {
			return lobbies[i].UpdatedAt.After(lobbies[j].UpdatedAt)
		}
		return lobbies[i].ID < lobbies[j].ID
	})
	return lobbies, nil
}

func (s *Store) CreateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	copied.User = nil
	if p.SeatIndex != nil {
		seat := *p.SeatIndex
		copied.SeatIndex = &seat
	}
	s.participants[copied.ID] = &copied
	return nil
}

func (s *Store) ParticipantByID(_ context.Context, id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[id]; ok {
		return s.participantCopyLocked(p), nil
	}
	return nil, nil
}

func (s *Store) ParticipantByLobbyUser(_ context.Context, lobbyID, userID string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.LobbyID == lobbyID && p.UserID == userID {
			return s.participantCopyLocked(p), nil
		}
	}
	return nil, nil
}

func (s *Store) ParticipantsByLobby(_ context.Context, lobbyID string) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participantsLocked(lobbyID), nil
}

func (s *Store) SetParticipantState(_ context.Context, id string, state domain.ParticipantState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[id]; ok {
		p.State = state
		p.UpdatedAt = at
	}
	return nil
}

func (s *Store) AddParticipantScore(_ context.Context, id string, delta int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[id]; ok {
		p.Score += delta
		p.UpdatedAt = at
	}
	return nil
}

func (s *Store) SeedQuestions(_ context.Context, questions []*domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = nil
	for _, q := range questions {
		copied := *q
		s.questions = append(s.questions, &copied)
	}
	return nil
}

func (s *Store) ListQuestions(_ context.Context) ([]*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Question, len(s.questions))
	copy(out, s.questions)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundIndex != out[j].RoundIndex {
			return out[i].RoundIndex < out[j].RoundIndex
		}
		if out[i].CategoryIndex != out[j].CategoryIndex {
			return out[i].CategoryIndex < out[j].CategoryIndex
		}
		return out[i].BaseValue < out[j].BaseValue
	})
	return out, nil
}

func (s *Store) CountQuestionStates(_ context.Context, lobbyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, state := range s.states {
		if state.LobbyID == lobbyID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateQuestionStates(_ context.Context, states []*domain.QuestionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range states {
		copied := *state
		copied.Question = nil
		copied.Attempts = nil
		s.states[copied.ID] = &copied
	}
	return nil
}

func (s *Store) QuestionStateByID(_ context.Context, id string) (*domain.QuestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[id]; ok {
		return s.stateCopyLocked(state, false), nil
	}
	return nil, nil
}

func (s *Store) QuestionStatesByLobby(_ context.Context, lobbyID string) ([]*domain.QuestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.QuestionState
	for _, state := range s.states {
		if state.LobbyID == lobbyID {
			out = append(out, s.stateCopyLocked(state, true))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundIndex != out[j].RoundIndex {
			return out[i].RoundIndex < out[j].RoundIndex
		}
		ci, cj := 0, 0
		if out[i].Question != nil {
			ci = out[i].Question.CategoryIndex
		}
		if out[j].Question != nil {
			cj = out[j].Question.CategoryIndex
		}
		if ci != cj {
			return ci < cj
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (s *Store) ActiveQuestionState(_ context.Context, lobbyID string) (*domain.QuestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.QuestionState
	for _, state := range s.states {
		if state.LobbyID != lobbyID || state.Status != domain.QuestionActive {
			continue
		}
		if latest == nil || state.UpdatedAt.After(latest.UpdatedAt) {
			latest = state
		}
	}
	if latest == nil {
		return nil, nil
	}
	return s.stateCopyLocked(latest, false), nil
}

func (s *Store) ExpiredQuestionStates(_ context.Context, lobbyID string, now time.Time) ([]*domain.QuestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.QuestionState
	for _, state := range s.states {
		if state.LobbyID != lobbyID || state.Status != domain.QuestionActive {
			continue
		}
		if state.TimerEndsAt != nil && !state.TimerEndsAt.After(now) {
			out = append(out, s.stateCopyLocked(state, false))
		}
	}
	return out, nil
}

func (s *Store) UpdateQuestionState(_ context.Context, state *domain.QuestionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	copied.Question = nil
	copied.Attempts = nil
	s.states[copied.ID] = &copied
	return nil
}

func (s *Store) CreateBuzzerAttempt(_ context.Context, attempt *domain.BuzzerAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *attempt
	copied.Participant = nil
	s.attempts[copied.ID] = &copied
	return nil
}

func (s *Store) BuzzerAttemptByID(_ context.Context, id string) (*domain.BuzzerAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if attempt, ok := s.attempts[id]; ok {
		return s.attemptCopyLocked(attempt), nil
	}
	return nil, nil
}

func (s *Store) CountBuzzerAttempts(_ context.Context, questionStateID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.QuestionStateID == questionStateID {
			count++
		}
	}
	return count, nil
}

func (s *Store) HasBuzzed(_ context.Context, questionStateID, participantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, attempt := range s.attempts {
		if attempt.QuestionStateID == questionStateID && attempt.ParticipantID == participantID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SetBuzzerResult(_ context.Context, id string, result domain.BuzzResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[id]; ok {
		attempt.Result = result
		attempt.UpdatedAt = at
	}
	return nil
}

func (s *Store) ClosePendingAttempts(_ context.Context, questionStateID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, attempt := range s.attempts {
		if attempt.QuestionStateID == questionStateID && attempt.Result == domain.BuzzPending {
			attempt.Result = domain.BuzzSkipped
			attempt.UpdatedAt = at
		}
	}
	return nil
}

func (s *Store) AppendScoreEvent(_ context.Context, event *domain.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	copied.Participant = nil
	copied.QuestionState = nil
	s.events = append(s.events, &copied)
	return nil
}

func (s *Store) ScoreEventsByLobby(_ context.Context, lobbyID string, limit int) ([]*domain.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ScoreEvent
	// Insertion order is creation order; walk backwards for newest-first.
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		event := s.events[i]
		if event.LobbyID != lobbyID {
			continue
		}
		copied := *event
		if p, ok := s.participants[event.ParticipantID]; ok {
			copied.Participant = s.participantCopyLocked(p)
		}
		if event.QuestionStateID != nil {
			if state, ok := s.states[*event.QuestionStateID]; ok {
				copied.QuestionState = s.stateCopyLocked(state, false)
			}
		}
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) participantsLocked(lobbyID string) []*domain.Participant {
	var out []*domain.Participant
	for _, p := range s.participants {
		if p.LobbyID == lobbyID {
			out = append(out, s.participantCopyLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) participantCopyLocked(p *domain.Participant) *domain.Participant {
	copied := *p
	if p.SeatIndex != nil {
		seat := *p.SeatIndex
		copied.SeatIndex = &seat
	}
	if u, ok := s.users[p.UserID]; ok {
		user := *u
		copied.User = &user
	}
	return &copied
}

func (s *Store) stateCopyLocked(state *domain.QuestionState, withAttempts bool) *domain.QuestionState {
	copied := *state
	for _, q := range s.questions {
		if q.ID == state.QuestionID {
			question := *q
			copied.Question = &question
			break
		}
	}
	if withAttempts {
		var attempts []*domain.BuzzerAttempt
		for _, attempt := range s.attempts {
			if attempt.QuestionStateID == state.ID {
				attempts = append(attempts, s.attemptCopyLocked(attempt))
			}
		}
		sort.Slice(attempts, func(i, j int) bool { return attempts[i].OrderIndex < attempts[j].OrderIndex })
		copied.Attempts = attempts
	}
	return &copied
}

func (s *Store) attemptCopyLocked(attempt *domain.BuzzerAttempt) *domain.BuzzerAttempt {
	copied := *attempt
	if p, ok := s.participants[attempt.ParticipantID]; ok {
		copied.Participant = s.participantCopyLocked(p)
	}
	return &copied
}
