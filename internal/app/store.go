package app

import (
	"context"
	"time"

	"buzzboard/internal/domain"
)

// Tx is the set of store operations available inside a transaction.
// Lookup methods return (nil, nil) when no row matches; callers translate
// that into the appropriate domain error.
type Tx interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UserByID(ctx context.Context, id string) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreateLobby(ctx context.Context, lobby *domain.Lobby) error
	UpdateLobby(ctx context.Context, lobby *domain.Lobby) error
	LobbyByID(ctx context.Context, id string) (*domain.Lobby, error)
	// LobbyByCode loads a lobby with its participants and their users.
	LobbyByCode(ctx context.Context, code string) (*domain.Lobby, error)
	// ListLobbiesForUser returns lobbies the user participates in, most
	// recently updated first, with participants and users attached.
	ListLobbiesForUser(ctx context.Context, userID string) ([]*domain.Lobby, error)

	CreateParticipant(ctx context.Context, p *domain.Participant) error
	ParticipantByID(ctx context.Context, id string) (*domain.Participant, error)
	ParticipantByLobbyUser(ctx context.Context, lobbyID, userID string) (*domain.Participant, error)
	// ParticipantsByLobby returns all participants with users attached.
	ParticipantsByLobby(ctx context.Context, lobbyID string) ([]*domain.Participant, error)
	SetParticipantState(ctx context.Context, id string, state domain.ParticipantState, at time.Time) error
	// AddParticipantScore applies a signed delta to the running counter.
	AddParticipantScore(ctx context.Context, id string, delta int, at time.Time) error

	SeedQuestions(ctx context.Context, questions []*domain.Question) error
	// ListQuestions returns the catalog ordered by (round, category, value).
	ListQuestions(ctx context.Context) ([]*domain.Question, error)

	CountQuestionStates(ctx context.Context, lobbyID string) (int, error)
	CreateQuestionStates(ctx context.Context, states []*domain.QuestionState) error
	// QuestionStateByID loads a state with its catalog question attached.
	QuestionStateByID(ctx context.Context, id string) (*domain.QuestionState, error)
	// QuestionStatesByLobby returns all states ordered by (round, category,
	// value) with questions and ordered buzz attempts (with participants
	// and users) attached.
	QuestionStatesByLobby(ctx context.Context, lobbyID string) ([]*domain.QuestionState, error)
	// ActiveQuestionState returns the most recently updated ACTIVE state.
	ActiveQuestionState(ctx context.Context, lobbyID string) (*domain.QuestionState, error)
	// ExpiredQuestionStates returns ACTIVE states whose timer passed.
	ExpiredQuestionStates(ctx context.Context, lobbyID string, now time.Time) ([]*domain.QuestionState, error)
	UpdateQuestionState(ctx context.Context, state *domain.QuestionState) error

	CreateBuzzerAttempt(ctx context.Context, attempt *domain.BuzzerAttempt) error
	// BuzzerAttemptByID loads an attempt with participant and user attached.
	BuzzerAttemptByID(ctx context.Context, id string) (*domain.BuzzerAttempt, error)
	CountBuzzerAttempts(ctx context.Context, questionStateID string) (int, error)
	HasBuzzed(ctx context.Context, questionStateID, participantID string) (bool, error)
	SetBuzzerResult(ctx context.Context, id string, result domain.BuzzResult, at time.Time) error
	// ClosePendingAttempts flips every PENDING attempt on the question to SKIPPED.
	ClosePendingAttempts(ctx context.Context, questionStateID string, at time.Time) error

	AppendScoreEvent(ctx context.Context, event *domain.ScoreEvent) error
	// ScoreEventsByLobby returns the newest events first, with participant,
	// user, and question state (with question) attached.
	ScoreEventsByLobby(ctx context.Context, lobbyID string, limit int) ([]*domain.ScoreEvent, error)
}

// Store is the transactional relational store backing the game. Mutating
// operations run their reads, validations, and writes inside a single
// RunInTx call so partial application is never observable.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// CatalogRepository serves the read-only question bank, typically through
// a cache in front of the store.
type CatalogRepository interface {
	ListQuestions(ctx context.Context) ([]*domain.Question, error)
}
