package app

import (
	"context"
	"time"

	"buzzboard/internal/domain"
)

// ensureBoard materializes one UNPLAYED state per catalog question for the
// lobby. Idempotent: a lobby that already has states is left untouched.
func (s *GameService) ensureBoard(ctx context.Context, tx Tx, lobbyID string) error {
	count, err := tx.CountQuestionStates(ctx, lobbyID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	questions, err := s.catalog.ListQuestions(ctx)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestionsSeeded
	}

	now := s.now()
	states := make([]*domain.QuestionState, 0, len(questions))
	for _, q := range questions {
		states = append(states, &domain.QuestionState{
			ID:         s.newID(),
			LobbyID:    lobbyID,
			QuestionID: q.ID,
			RoundIndex: q.RoundIndex,
			Value:      q.BaseValue,
			Status:     domain.QuestionUnplayed,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return tx.CreateQuestionStates(ctx, states)
}

// expireElapsed discards every ACTIVE state whose timer has passed and
// closes its pending buzz attempts. Timer expiry is pull-based: there is
// no background scheduler, so this runs at the top of every board read.
func (s *GameService) expireElapsed(ctx context.Context, tx Tx, lobbyID string) error {
	now := s.now()
	expired, err := tx.ExpiredQuestionStates(ctx, lobbyID, now)
	if err != nil {
		return err
	}
	for _, state := range expired {
		state.Status = domain.QuestionDiscarded
		state.ActivatedAt = nil
		state.TimerEndsAt = nil
		state.UpdatedAt = now
		if err := tx.UpdateQuestionState(ctx, state); err != nil {
			return err
		}
		if err := tx.ClosePendingAttempts(ctx, state.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// GetBoard returns the lobby's question states grouped by round and
// category, expiring any timed-out active question first. The caller must
// hold a seat in the lobby.
func (s *GameService) GetBoard(ctx context.Context, lobbyID, userID string) (*BoardView, error) {
	if _, err := requireMember(ctx, s.store, lobbyID, userID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(lobbyID)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := s.ensureBoard(ctx, tx, lobbyID); err != nil {
			return err
		}
		return s.expireElapsed(ctx, tx, lobbyID)
	})
	unlock()
	if err != nil {
		return nil, err
	}

	return s.buildBoardView(ctx, lobbyID)
}

// SelectQuestion activates an unplayed question and starts its buzz timer.
// This is the only entry point that arms the countdown from scratch.
func (s *GameService) SelectQuestion(ctx context.Context, lobbyID, questionStateID, actingUserID string) (*domain.QuestionState, error) {
	unlock := s.locks.lock(lobbyID)
	defer unlock()

	var state *domain.QuestionState
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := requireAdmin(ctx, tx, lobbyID, actingUserID); err != nil {
			return err
		}

		active, err := tx.ActiveQuestionState(ctx, lobbyID)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.ErrQuestionAlreadyActive
		}

		state, err = tx.QuestionStateByID(ctx, questionStateID)
		if err != nil {
			return err
		}
		if state == nil || state.LobbyID != lobbyID {
			return domain.ErrWrongLobby
		}
		if state.Status != domain.QuestionUnplayed {
			return domain.ErrInvalidTransition
		}

		now := s.now()
		ends := now.Add(QuestionTimerSeconds * time.Second)
		selectedBy := actingUserID
		state.Status = domain.QuestionActive
		state.ActivatedAt = &now
		state.TimerEndsAt = &ends
		state.SelectedByID = &selectedBy
		state.UpdatedAt = now
		if err := tx.UpdateQuestionState(ctx, state); err != nil {
			return err
		}

		lobby, err := tx.LobbyByID(ctx, lobbyID)
		if err != nil {
			return err
		}
		if lobby != nil && (lobby.Status == domain.LobbyPregame || lobby.RoundIndex != state.RoundIndex) {
			if lobby.Status == domain.LobbyPregame {
				lobby.Status = domain.LobbyInProgress
			}
			lobby.RoundIndex = state.RoundIndex
			lobby.UpdatedAt = now
			return tx.UpdateLobby(ctx, lobby)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBoard(ctx, lobbyID)
	return state, nil
}

// ResolveParams identifies the question being adjudicated. ParticipantID
// is required for CORRECT and INCORRECT verdicts and ignored for SKIPPED.
type ResolveParams struct {
	LobbyID         string
	QuestionStateID string
	ParticipantID   string
	ActingUserID    string
	Verdict         domain.Verdict
}

// ResolveQuestion applies an admin verdict to a question state. CORRECT
// awards the full value and resolves the question; INCORRECT deducts half
// the value rounded up but deliberately leaves the question ACTIVE so the
// timer keeps running and other players can still buzz; SKIPPED discards
// the question. Score counter, ledger entry, and status change commit as
// one unit.
func (s *GameService) ResolveQuestion(ctx context.Context, params ResolveParams) (*domain.QuestionState, error) {
	unlock := s.locks.lock(params.LobbyID)
	defer unlock()

	var state *domain.QuestionState
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		state, err = s.resolveQuestionTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishBoard(ctx, params.LobbyID)
	return state, nil
}

// resolveQuestionTx is the transactional core of ResolveQuestion, shared
// with buzz adjudication which runs it inside its own transaction.
func (s *GameService) resolveQuestionTx(ctx context.Context, tx Tx, params ResolveParams) (*domain.QuestionState, error) {
	if _, err := requireAdmin(ctx, tx, params.LobbyID, params.ActingUserID); err != nil {
		return nil, err
	}

	switch params.Verdict {
	case domain.VerdictCorrect, domain.VerdictIncorrect, domain.VerdictSkipped:
	default:
		return nil, domain.Validationf("verdict", "must be CORRECT, INCORRECT, or SKIPPED")
	}

	state, err := tx.QuestionStateByID(ctx, params.QuestionStateID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.LobbyID != params.LobbyID {
		return nil, domain.ErrWrongLobby
	}

	if params.Verdict != domain.VerdictSkipped && params.ParticipantID == "" {
		return nil, domain.Validationf("participantId", "required for this verdict")
	}
	if params.Verdict == domain.VerdictCorrect && state.Status != domain.QuestionActive {
		return nil, domain.ErrInvalidTransition
	}
	if params.Verdict == domain.VerdictSkipped &&
		(state.Status == domain.QuestionResolved || state.Status == domain.QuestionDiscarded) {
		// Terminal states are final.
		return nil, domain.ErrInvalidTransition
	}

	var participant *domain.Participant
	if params.ParticipantID != "" {
		participant, err = tx.ParticipantByID(ctx, params.ParticipantID)
		if err != nil {
			return nil, err
		}
		if participant == nil {
			return nil, domain.ErrNotAMember
		}
		if participant.LobbyID != params.LobbyID {
			return nil, domain.ErrWrongLobby
		}
	}

	now := s.now()
	status := state.Status
	closePending := false

	switch params.Verdict {
	case domain.VerdictCorrect:
		delta := state.Value
		if err := tx.AddParticipantScore(ctx, participant.ID, delta, now); err != nil {
			return nil, err
		}
		if err := s.appendScoreEvent(ctx, tx, state, participant.ID, delta, domain.ReasonQuestionCorrect, params.ActingUserID, now); err != nil {
			return nil, err
		}
		status = domain.QuestionResolved
		closePending = true
	case domain.VerdictIncorrect:
		delta := -((state.Value + 1) / 2) // ceil(value/2)
		if err := tx.AddParticipantScore(ctx, participant.ID, delta, now); err != nil {
			return nil, err
		}
		if err := s.appendScoreEvent(ctx, tx, state, participant.ID, delta, domain.ReasonQuestionIncorrect, params.ActingUserID, now); err != nil {
			return nil, err
		}
		// Status untouched: an incorrect answer is not terminal.
	case domain.VerdictSkipped:
		status = domain.QuestionDiscarded
		closePending = true
	}

	keepActive := status == domain.QuestionActive
	state.Status = status
	if status == domain.QuestionResolved {
		resolvedBy := params.ActingUserID
		state.ResolvedByID = &resolvedBy
	}
	if !keepActive {
		state.ActivatedAt = nil
		state.TimerEndsAt = nil
	}
	state.UpdatedAt = now
	if err := tx.UpdateQuestionState(ctx, state); err != nil {
		return nil, err
	}

	if closePending {
		if err := tx.ClosePendingAttempts(ctx, state.ID, now); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (s *GameService) appendScoreEvent(ctx context.Context, tx Tx, state *domain.QuestionState, participantID string, delta int, reason, actingUserID string, now time.Time) error {
	stateID := state.ID
	return tx.AppendScoreEvent(ctx, &domain.ScoreEvent{
		ID:              s.newID(),
		LobbyID:         state.LobbyID,
		ParticipantID:   participantID,
		QuestionStateID: &stateID,
		Delta:           delta,
		Reason:          reason,
		UserID:          actingUserID,
		CreatedAt:       now,
	})
}
