// Package postgres implements the game store on Postgres through bun.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/domain"

	"github.com/uptrace/bun"
)

// Store implements app.Store. Inside RunInTx the same struct wraps the
// bun.Tx, so every method works both in and out of a transaction.
type Store struct {
	db   bun.IDB
	root *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, root: db}
}

// RunInTx executes fn inside a single database transaction. Every
// mutating operation commits or aborts as one unit.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.root.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx, root: s.root})
	})
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	return oneOrNil(user, err, "user by id")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.email = ?", email).Scan(ctx)
	return oneOrNil(user, err, "user by email")
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user := new(domain.User)
	err := s.db.NewSelect().Model(user).Where("u.username = ?", username).Scan(ctx)
	return oneOrNil(user, err, "user by username")
}

func (s *Store) CreateLobby(ctx context.Context, lobby *domain.Lobby) error {
	if _, err := s.db.NewInsert().Model(lobby).Exec(ctx); err != nil {
		return fmt.Errorf("insert lobby: %w", err)
	}
	return nil
}

func (s *Store) UpdateLobby(ctx context.Context, lobby *domain.Lobby) error {
	if _, err := s.db.NewUpdate().Model(lobby).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update lobby: %w", err)
	}
	return nil
}

func (s *Store) LobbyByID(ctx context.Context, id string) (*domain.Lobby, error) {
	lobby := new(domain.Lobby)
	err := s.db.NewSelect().Model(lobby).Where("l.id = ?", id).Scan(ctx)
	return oneOrNil(lobby, err, "lobby by id")
}

func (s *Store) LobbyByCode(ctx context.Context, code string) (*domain.Lobby, error) {
	lobby := new(domain.Lobby)
	err := s.db.NewSelect().Model(lobby).
		Where("l.code = ?", code).
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("lp.created_at ASC")
		}).
		Relation("Participants.User").
		Scan(ctx)
	return oneOrNil(lobby, err, "lobby by code")
}

func (s *Store) ListLobbiesForUser(ctx context.Context, userID string) ([]*domain.Lobby, error) {
	var lobbies []*domain.Lobby
	err := s.db.NewSelect().Model(&lobbies).
		Where("EXISTS (SELECT 1 FROM lobby_participants lp WHERE lp.lobby_id = l.id AND lp.user_id = ?)", userID).
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("lp.created_at ASC")
		}).
		Relation("Participants.User").
		Order("l.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lobbies for user: %w", err)
	}
	return lobbies, nil
}

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	if _, err := s.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) ParticipantByID(ctx context.Context, id string) (*domain.Participant, error) {
	p := new(domain.Participant)
	err := s.db.NewSelect().Model(p).Where("lp.id = ?", id).Relation("User").Scan(ctx)
	return oneOrNil(p, err, "participant by id")
}

func (s *Store) ParticipantByLobbyUser(ctx context.Context, lobbyID, userID string) (*domain.Participant, error) {
	p := new(domain.Participant)
	err := s.db.NewSelect().Model(p).
		Where("lp.lobby_id = ?", lobbyID).
		Where("lp.user_id = ?", userID).
		Relation("User").
		Scan(ctx)
	return oneOrNil(p, err, "participant by lobby and user")
}

func (s *Store) ParticipantsByLobby(ctx context.Context, lobbyID string) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	err := s.db.NewSelect().Model(&participants).
		Where("lp.lobby_id = ?", lobbyID).
		Relation("User").
		Order("lp.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("participants by lobby: %w", err)
	}
	return participants, nil
}

func (s *Store) SetParticipantState(ctx context.Context, id string, state domain.ParticipantState, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*domain.Participant)(nil)).
		Set("state = ?", state).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set participant state: %w", err)
	}
	return nil
}

func (s *Store) AddParticipantScore(ctx context.Context, id string, delta int, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*domain.Participant)(nil)).
		Set("score = score + ?", delta).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("add participant score: %w", err)
	}
	return nil
}

func (s *Store) SeedQuestions(ctx context.Context, questions []*domain.Question) error {
	if _, err := s.db.NewDelete().Model((*domain.Question)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	if _, err := s.db.NewInsert().Model(&questions).Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]*domain.Question, error) {
	var questions []*domain.Question
	err := s.db.NewSelect().Model(&questions).
		Order("q.round_index ASC", "q.category_index ASC", "q.base_value ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

func (s *Store) CountQuestionStates(ctx context.Context, lobbyID string) (int, error) {
	count, err := s.db.NewSelect().Model((*domain.QuestionState)(nil)).
		Where("qs.lobby_id = ?", lobbyID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count question states: %w", err)
	}
	return count, nil
}

func (s *Store) CreateQuestionStates(ctx context.Context, states []*domain.QuestionState) error {
	if len(states) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&states).Exec(ctx); err != nil {
		return fmt.Errorf("insert question states: %w", err)
	}
	return nil
}

func (s *Store) QuestionStateByID(ctx context.Context, id string) (*domain.QuestionState, error) {
	state := new(domain.QuestionState)
	err := s.db.NewSelect().Model(state).
		Where("qs.id = ?", id).
		Relation("Question").
		Scan(ctx)
	return oneOrNil(state, err, "question state by id")
}

func (s *Store) QuestionStatesByLobby(ctx context.Context, lobbyID string) ([]*domain.QuestionState, error) {
	var states []*domain.QuestionState
	err := s.db.NewSelect().Model(&states).
		Where("qs.lobby_id = ?", lobbyID).
		Relation("Question").
		Relation("Attempts", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ba.order_index ASC")
		}).
		Relation("Attempts.Participant").
		Relation("Attempts.Participant.User").
		OrderExpr("qs.round_index ASC, question.category_index ASC, qs.value ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("question states by lobby: %w", err)
	}
	return states, nil
}

func (s *Store) ActiveQuestionState(ctx context.Context, lobbyID string) (*domain.QuestionState, error) {
	state := new(domain.QuestionState)
	err := s.db.NewSelect().Model(state).
		Where("qs.lobby_id = ?", lobbyID).
		Where("qs.status = ?", domain.QuestionActive).
		Order("qs.updated_at DESC").
		Limit(1).
		Scan(ctx)
	return oneOrNil(state, err, "active question state")
}

func (s *Store) ExpiredQuestionStates(ctx context.Context, lobbyID string, now time.Time) ([]*domain.QuestionState, error) {
	var states []*domain.QuestionState
	err := s.db.NewSelect().Model(&states).
		Where("qs.lobby_id = ?", lobbyID).
		Where("qs.status = ?", domain.QuestionActive).
		Where("qs.timer_ends_at IS NOT NULL").
		Where("qs.timer_ends_at <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("expired question states: %w", err)
	}
	return states, nil
}

func (s *Store) UpdateQuestionState(ctx context.Context, state *domain.QuestionState) error {
	if _, err := s.db.NewUpdate().Model(state).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update question state: %w", err)
	}
	return nil
}

func (s *Store) CreateBuzzerAttempt(ctx context.Context, attempt *domain.BuzzerAttempt) error {
	if _, err := s.db.NewInsert().Model(attempt).Exec(ctx); err != nil {
		return fmt.Errorf("insert buzz attempt: %w", err)
	}
	return nil
}

func (s *Store) BuzzerAttemptByID(ctx context.Context, id string) (*domain.BuzzerAttempt, error) {
	attempt := new(domain.BuzzerAttempt)
	err := s.db.NewSelect().Model(attempt).
		Where("ba.id = ?", id).
		Relation("Participant").
		Relation("Participant.User").
		Scan(ctx)
	return oneOrNil(attempt, err, "buzz attempt by id")
}

func (s *Store) CountBuzzerAttempts(ctx context.Context, questionStateID string) (int, error) {
	count, err := s.db.NewSelect().Model((*domain.BuzzerAttempt)(nil)).
		Where("ba.question_state_id = ?", questionStateID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count buzz attempts: %w", err)
	}
	return count, nil
}

func (s *Store) HasBuzzed(ctx context.Context, questionStateID, participantID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*domain.BuzzerAttempt)(nil)).
		Where("ba.question_state_id = ?", questionStateID).
		Where("ba.participant_id = ?", participantID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("has buzzed: %w", err)
	}
	return exists, nil
}

func (s *Store) SetBuzzerResult(ctx context.Context, id string, result domain.BuzzResult, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*domain.BuzzerAttempt)(nil)).
		Set("result = ?", result).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set buzz result: %w", err)
	}
	return nil
}

func (s *Store) ClosePendingAttempts(ctx context.Context, questionStateID string, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*domain.BuzzerAttempt)(nil)).
		Set("result = ?", domain.BuzzSkipped).
		Set("updated_at = ?", at).
		Where("question_state_id = ?", questionStateID).
		Where("result = ?", domain.BuzzPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("close pending attempts: %w", err)
	}
	return nil
}

func (s *Store) AppendScoreEvent(ctx context.Context, event *domain.ScoreEvent) error {
	if _, err := s.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("append score event: %w", err)
	}
	return nil
}

func (s *Store) ScoreEventsByLobby(ctx context.Context, lobbyID string, limit int) ([]*domain.ScoreEvent, error) {
	var events []*domain.ScoreEvent
	err := s.db.NewSelect().Model(&events).
		Where("se.lobby_id = ?", lobbyID).
		Relation("Participant").
		Relation("Participant.User").
		Relation("QuestionState").
		Relation("QuestionState.Question").
		Order("se.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("score events by lobby: %w", err)
	}
	return events, nil
}

func oneOrNil[T any](model *T, err error, op string) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return model, nil
}
