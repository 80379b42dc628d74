package app

import (
	"context"
	"time"

	"buzzboard/internal/domain"
)

// SubmitBuzzAttempt appends the caller's buzz to the active question's
// queue. Every successful buzz re-arms the question timer to give the
// admin time to adjudicate before the window closes on other players;
// the re-arm is part of the contract, not an incidental side effect.
func (s *GameService) SubmitBuzzAttempt(ctx context.Context, lobbyID, userID string) (*domain.BuzzerAttempt, error) {
	unlock := s.locks.lock(lobbyID)
	defer unlock()

	var attempt *domain.BuzzerAttempt
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		participant, err := requireMember(ctx, tx, lobbyID, userID)
		if err != nil {
			return err
		}
		if participant.Role != domain.RolePlayer {
			return domain.ErrPlayersOnly
		}
		if participant.State != domain.ParticipantActive {
			return domain.ErrInactiveParticipant
		}

		active, err := tx.ActiveQuestionState(ctx, lobbyID)
		if err != nil {
			return err
		}
		if active == nil {
			return domain.ErrNoActiveQuestion
		}

		now := s.now()
		// Checked at submission time even when expiry has not been
		// materialized by a board read yet.
		if active.TimerEndsAt != nil && !active.TimerEndsAt.After(now) {
			return domain.ErrTimerExpired
		}

		buzzed, err := tx.HasBuzzed(ctx, active.ID, participant.ID)
		if err != nil {
			return err
		}
		if buzzed {
			return domain.ErrAlreadyBuzzed
		}

		order, err := tx.CountBuzzerAttempts(ctx, active.ID)
		if err != nil {
			return err
		}

		attempt = &domain.BuzzerAttempt{
			ID:              s.newID(),
			LobbyID:         lobbyID,
			ParticipantID:   participant.ID,
			QuestionStateID: active.ID,
			OrderIndex:      order,
			Result:          domain.BuzzPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateBuzzerAttempt(ctx, attempt); err != nil {
			return err
		}

		ends := now.Add(QuestionTimerSeconds * time.Second)
		active.ActivatedAt = &now
		active.TimerEndsAt = &ends
		active.UpdatedAt = now
		return tx.UpdateQuestionState(ctx, active)
	})
	if err != nil {
		return nil, err
	}

	s.publishBoard(ctx, lobbyID)
	return attempt, nil
}

// MarkBuzzAttemptResult records the admin's ruling on a pending buzz.
// CORRECT and INCORRECT delegate to the question resolution rules in the
// same transaction, so scoring and state transitions apply transitively.
// Adjudication order is a client convention built on OrderIndex; the
// server does not reject out-of-order rulings.
func (s *GameService) MarkBuzzAttemptResult(ctx context.Context, lobbyID, attemptID, actingUserID string, verdict domain.Verdict) (*domain.BuzzerAttempt, error) {
	switch verdict {
	case domain.VerdictCorrect, domain.VerdictIncorrect, domain.VerdictSkipped:
	default:
		return nil, domain.Validationf("result", "must be CORRECT, INCORRECT, or SKIPPED")
	}

	unlock := s.locks.lock(lobbyID)
	defer unlock()

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := requireAdmin(ctx, tx, lobbyID, actingUserID); err != nil {
			return err
		}

		attempt, err := tx.BuzzerAttemptByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt == nil || attempt.LobbyID != lobbyID {
			return domain.ErrAttemptNotFound
		}
		if attempt.Result != domain.BuzzPending {
			return domain.ErrAlreadyResolved
		}

		state, err := tx.QuestionStateByID(ctx, attempt.QuestionStateID)
		if err != nil {
			return err
		}
		if state == nil || state.Status != domain.QuestionActive {
			return domain.ErrQuestionNotActive
		}

		if err := tx.SetBuzzerResult(ctx, attempt.ID, domain.BuzzResult(verdict), s.now()); err != nil {
			return err
		}

		if verdict == domain.VerdictCorrect || verdict == domain.VerdictIncorrect {
			_, err = s.resolveQuestionTx(ctx, tx, ResolveParams{
				LobbyID:         lobbyID,
				QuestionStateID: attempt.QuestionStateID,
				ParticipantID:   attempt.ParticipantID,
				ActingUserID:    actingUserID,
				Verdict:         verdict,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBoard(ctx, lobbyID)
	return s.store.BuzzerAttemptByID(ctx, attemptID)
}
