package app

import (
	"context"
	"sort"
	"time"

	"buzzboard/internal/domain"
)

// BoardView is the grouped snapshot returned by GetBoard and pushed on the
// live feed: rounds → categories → question states, plus the seat list.
type BoardView struct {
	LobbyID      string            `json:"lobbyId"`
	Rounds       []BoardRound      `json:"rounds"`
	Participants []ParticipantView `json:"participants"`
}

type BoardRound struct {
	RoundIndex int             `json:"roundIndex"`
	Categories []BoardCategory `json:"categories"`
}

type BoardCategory struct {
	Category      string              `json:"category"`
	CategoryIndex int                 `json:"categoryIndex"`
	Questions     []QuestionStateView `json:"questions"`
}

type QuestionStateView struct {
	ID          string                `json:"id"`
	QuestionID  string                `json:"questionId"`
	Status      domain.QuestionStatus `json:"status"`
	Value       int                   `json:"value"`
	RoundIndex  int                   `json:"roundIndex"`
	Prompt      string                `json:"prompt"`
	Answer      string                `json:"answer,omitempty"`
	ActivatedAt *time.Time            `json:"activatedAt,omitempty"`
	TimerEndsAt *time.Time            `json:"timerEndsAt,omitempty"`
	Attempts    []AttemptView         `json:"attempts"`
}

type AttemptView struct {
	ID            string            `json:"id"`
	ParticipantID string            `json:"participantId"`
	OrderIndex    int               `json:"orderIndex"`
	Result        domain.BuzzResult `json:"result"`
	DisplayName   string            `json:"displayName,omitempty"`
	Username      string            `json:"username,omitempty"`
	SeatIndex     *int              `json:"seatIndex,omitempty"`
}

type ParticipantView struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"userId"`
	Role        domain.Role             `json:"role"`
	State       domain.ParticipantState `json:"state"`
	Score       int                     `json:"score"`
	SeatIndex   *int                    `json:"seatIndex,omitempty"`
	DisplayName string                  `json:"displayName,omitempty"`
	Username    string                  `json:"username,omitempty"`
}

// ScoreEventView is one resolved ledger entry for display.
type ScoreEventView struct {
	ID          string                  `json:"id"`
	Delta       int                     `json:"delta"`
	Reason      string                  `json:"reason"`
	CreatedAt   time.Time               `json:"createdAt"`
	Participant ScoreEventParticipant   `json:"participant"`
	Question    *ScoreEventQuestionInfo `json:"question,omitempty"`
}

type ScoreEventParticipant struct {
	ID          string `json:"id"`
	SeatIndex   *int   `json:"seatIndex,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type ScoreEventQuestionInfo struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Value    int    `json:"value"`
}

// buildBoardView reads the lobby's states and participants and groups them
// for display. Read-only; expiry must have run beforehand.
func (s *GameService) buildBoardView(ctx context.Context, lobbyID string) (*BoardView, error) {
	states, err := s.store.QuestionStatesByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ParticipantsByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	type catKey struct{ round, cat int }
	cats := make(map[catKey]*BoardCategory)
	roundSet := make(map[int]bool)
	for _, state := range states {
		var category string
		categoryIndex := 0
		prompt, answer := "", ""
		if state.Question != nil {
			category = state.Question.Category
			categoryIndex = state.Question.CategoryIndex
			prompt = state.Question.Prompt
			answer = state.Question.Answer
		}

		view := QuestionStateView{
			ID:          state.ID,
			QuestionID:  state.QuestionID,
			Status:      state.Status,
			Value:       state.Value,
			RoundIndex:  state.RoundIndex,
			Prompt:      prompt,
			Answer:      answer,
			ActivatedAt: state.ActivatedAt,
			TimerEndsAt: state.TimerEndsAt,
			Attempts:    attemptViews(state.Attempts),
		}

		key := catKey{state.RoundIndex, categoryIndex}
		bucket, ok := cats[key]
		if !ok {
			bucket = &BoardCategory{Category: category, CategoryIndex: categoryIndex}
			cats[key] = bucket
			roundSet[state.RoundIndex] = true
		}
		bucket.Questions = append(bucket.Questions, view)
	}

	rounds := make([]BoardRound, 0, len(roundSet))
	for roundIndex := range roundSet {
		round := BoardRound{RoundIndex: roundIndex}
		for key, bucket := range cats {
			if key.round == roundIndex {
				round.Categories = append(round.Categories, *bucket)
			}
		}
		sort.Slice(round.Categories, func(i, j int) bool {
			return round.Categories[i].CategoryIndex < round.Categories[j].CategoryIndex
		})
		rounds = append(rounds, round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundIndex < rounds[j].RoundIndex })

	return &BoardView{
		LobbyID:      lobbyID,
		Rounds:       rounds,
		Participants: participantViews(participants),
	}, nil
}

func attemptViews(attempts []*domain.BuzzerAttempt) []AttemptView {
	views := make([]AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		view := AttemptView{
			ID:            attempt.ID,
			ParticipantID: attempt.ParticipantID,
			OrderIndex:    attempt.OrderIndex,
			Result:        attempt.Result,
		}
		if attempt.Participant != nil {
			view.SeatIndex = attempt.Participant.SeatIndex
			if attempt.Participant.User != nil {
				view.DisplayName = attempt.Participant.User.DisplayName
				view.Username = attempt.Participant.User.Username
			}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].OrderIndex < views[j].OrderIndex })
	return views
}

// ParticipantViewsOf builds display views for a seat list, admin first.
func ParticipantViewsOf(participants []*domain.Participant) []ParticipantView {
	return participantViews(participants)
}

func participantViews(participants []*domain.Participant) []ParticipantView {
	views := make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		view := ParticipantView{
			ID:        p.ID,
			UserID:    p.UserID,
			Role:      p.Role,
			State:     p.State,
			Score:     p.Score,
			SeatIndex: p.SeatIndex,
		}
		if p.User != nil {
			view.DisplayName = p.User.DisplayName
			view.Username = p.User.Username
		}
		views = append(views, view)
	}
	// Admin first, then players by seat.
	sort.Slice(views, func(i, j int) bool {
		if views[i].Role != views[j].Role {
			return views[i].Role == domain.RoleAdmin
		}
		si, sj := 0, 0
		if views[i].SeatIndex != nil {
			si = *views[i].SeatIndex
		}
		if views[j].SeatIndex != nil {
			sj = *views[j].SeatIndex
		}
		return si < sj
	})
	return views
}
