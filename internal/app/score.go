package app

import "context"

// LobbyScoreEvents returns the lobby's most recent ledger entries, newest
// first, resolved to participant and question display info. The caller
// must hold a seat in the lobby.
func (s *GameService) LobbyScoreEvents(ctx context.Context, lobbyID, userID string, limit int) ([]ScoreEventView, error) {
	if _, err := requireMember(ctx, s.store, lobbyID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultScoreEventLimit
	}

	events, err := s.store.ScoreEventsByLobby(ctx, lobbyID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]ScoreEventView, 0, len(events))
	for _, event := range events {
		view := ScoreEventView{
			ID:        event.ID,
			Delta:     event.Delta,
			Reason:    event.Reason,
			CreatedAt: event.CreatedAt,
			Participant: ScoreEventParticipant{
				ID: event.ParticipantID,
			},
		}
		if event.Participant != nil {
			view.Participant.SeatIndex = event.Participant.SeatIndex
			if event.Participant.User != nil {
				view.Participant.DisplayName = event.Participant.User.DisplayName
			}
		}
		if event.QuestionState != nil {
			info := &ScoreEventQuestionInfo{
				ID:    event.QuestionState.ID,
				Value: event.QuestionState.Value,
			}
			if event.QuestionState.Question != nil {
				info.Category = event.QuestionState.Question.Category
			}
			view.Question = info
		}
		views = append(views, view)
	}
	return views, nil
}
