package app

import (
	"context"
	"strings"

	"buzzboard/internal/domain"
)

// CreateLobby creates a play session with a unique join code, seats the
// creator as its sole admin, and materializes the board.
func (s *GameService) CreateLobby(ctx context.Context, userID, name string) (*domain.Lobby, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if len(name) < 3 {
		return nil, domain.Validationf("name", "at least 3 characters")
	}
	if len(name) > 50 {
		return nil, domain.Validationf("name", "at most 50 characters")
	}

	var lobby *domain.Lobby
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		code, err := s.generateUniqueCode(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now()
		lobby = &domain.Lobby{
			ID:        s.newID(),
			Code:      code,
			Name:      name,
			OwnerID:   userID,
			Status:    domain.LobbyPregame,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateLobby(ctx, lobby); err != nil {
			return err
		}

		admin := &domain.Participant{
			ID:        s.newID(),
			LobbyID:   lobby.ID,
			UserID:    userID,
			Role:      domain.RoleAdmin,
			State:     domain.ParticipantActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateParticipant(ctx, admin); err != nil {
			return err
		}
		lobby.Participants = []*domain.Participant{admin}

		return s.ensureBoard(ctx, tx, lobby.ID)
	})
	if err != nil {
		return nil, err
	}
	return lobby, nil
}

// JoinLobby seats the user in the lobby identified by code. An existing
// admin joining again is a no-op; a returning player is reactivated rather
// than duplicated; otherwise the lowest free seat is assigned.
func (s *GameService) JoinLobby(ctx context.Context, userID, code string) (*domain.Lobby, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 4 || len(code) > 8 {
		return nil, domain.Validationf("code", "must be 4-8 characters")
	}

	lobby, err := s.store.LobbyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if lobby == nil {
		return nil, domain.ErrLobbyNotFound
	}

	unlock := s.locks.lock(lobby.ID)
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		// Re-read under the lock; membership may have changed since.
		lobby, err = tx.LobbyByCode(ctx, code)
		if err != nil {
			return err
		}
		if lobby == nil {
			return domain.ErrLobbyNotFound
		}

		now := s.now()
		for _, p := range lobby.Participants {
			if p.UserID != userID {
				continue
			}
			if p.Role == domain.RoleAdmin {
				return nil
			}
			return tx.SetParticipantState(ctx, p.ID, domain.ParticipantActive, now)
		}

		players := 0
		taken := make(map[int]bool)
		for _, p := range lobby.Participants {
			if p.Role == domain.RolePlayer {
				players++
			}
			if p.SeatIndex != nil {
				taken[*p.SeatIndex] = true
			}
		}
		if players >= MaxPlayers {
			return domain.ErrLobbyFull
		}

		seat := 0
		for taken[seat] && seat < MaxPlayers {
			seat++
		}
		return tx.CreateParticipant(ctx, &domain.Participant{
			ID:        s.newID(),
			LobbyID:   lobby.ID,
			UserID:    userID,
			Role:      domain.RolePlayer,
			SeatIndex: &seat,
			State:     domain.ParticipantActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishBoard(ctx, lobby.ID)
	return s.store.LobbyByCode(ctx, code)
}

// ListLobbiesForUser returns the lobbies where the user holds a seat,
// most recently updated first.
func (s *GameService) ListLobbiesForUser(ctx context.Context, userID string) ([]*domain.Lobby, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return s.store.ListLobbiesForUser(ctx, userID)
}

// LobbyByCode resolves a normalized join code to its lobby with
// participants attached, or nil when unknown.
func (s *GameService) LobbyByCode(ctx context.Context, code string) (*domain.Lobby, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrLobbyNotFound
	}
	lobby, err := s.store.LobbyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if lobby == nil {
		return nil, domain.ErrLobbyNotFound
	}
	return lobby, nil
}

func (s *GameService) generateUniqueCode(ctx context.Context, tx Tx) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.randomCode()
		existing, err := tx.LobbyByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", domain.ErrCodeGenerationExhausted
}

func (s *GameService) randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}
