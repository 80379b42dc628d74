package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is a participant's role within a lobby.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RolePlayer Role = "PLAYER"
)

// ParticipantState tracks whether a participant currently holds their seat.
type ParticipantState string

const (
	ParticipantActive ParticipantState = "ACTIVE"
	ParticipantLeft   ParticipantState = "LEFT"
)

// LobbyStatus is the lifecycle phase of a play session.
type LobbyStatus string

const (
	LobbyPregame    LobbyStatus = "PREGAME"
	LobbyInProgress LobbyStatus = "IN_PROGRESS"
	LobbyCompleted  LobbyStatus = "COMPLETED"
)

// QuestionStatus is the per-lobby state of a catalog question.
// UNPLAYED is initial; RESOLVED and DISCARDED are terminal.
type QuestionStatus string

const (
	QuestionUnplayed  QuestionStatus = "UNPLAYED"
	QuestionActive    QuestionStatus = "ACTIVE"
	QuestionResolved  QuestionStatus = "RESOLVED"
	QuestionDiscarded QuestionStatus = "DISCARDED"
)

// BuzzResult is the adjudication outcome of a single buzz attempt.
type BuzzResult string

const (
	BuzzPending   BuzzResult = "PENDING"
	BuzzCorrect   BuzzResult = "CORRECT"
	BuzzIncorrect BuzzResult = "INCORRECT"
	BuzzSkipped   BuzzResult = "SKIPPED"
)

// Verdict is the admin's ruling on a question or buzz.
type Verdict string

const (
	VerdictCorrect   Verdict = "CORRECT"
	VerdictIncorrect Verdict = "INCORRECT"
	VerdictSkipped   Verdict = "SKIPPED"
)

// Score event reason codes.
const (
	ReasonQuestionCorrect   = "QUESTION_CORRECT"
	ReasonQuestionIncorrect = "QUESTION_INCORRECT"
)

// User is a registered identity. Immutable after registration.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	Username     string    `bun:"username,notnull,unique" json:"username"`
	DisplayName  string    `bun:"display_name,notnull" json:"displayName"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Lobby is one play session identified by a short join code.
type Lobby struct {
	bun.BaseModel `bun:"table:lobbies,alias:l"`

	ID         string      `bun:"id,pk" json:"id"`
	Code       string      `bun:"code,notnull,unique" json:"code"`
	Name       string      `bun:"name,notnull" json:"name"`
	OwnerID    string      `bun:"owner_id,notnull" json:"ownerId"`
	Status     LobbyStatus `bun:"status,notnull" json:"status"`
	RoundIndex int         `bun:"round_index,notnull" json:"roundIndex"`
	CreatedAt  time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time   `bun:"updated_at,notnull" json:"updatedAt"`

	Participants []*Participant `bun:"rel:has-many,join:id=lobby_id" json:"participants"`
}

// Participant binds a user to a lobby with a role, seat, and running score.
// SeatIndex is nil for the admin; players hold unique seats in [0, MaxPlayers).
type Participant struct {
	bun.BaseModel `bun:"table:lobby_participants,alias:lp"`

	ID        string           `bun:"id,pk" json:"id"`
	LobbyID   string           `bun:"lobby_id,notnull" json:"lobbyId"`
	UserID    string           `bun:"user_id,notnull" json:"userId"`
	Role      Role             `bun:"role,notnull" json:"role"`
	SeatIndex *int             `bun:"seat_index" json:"seatIndex,omitempty"`
	State     ParticipantState `bun:"state,notnull" json:"state"`
	Score     int              `bun:"score,notnull" json:"score"`
	CreatedAt time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time        `bun:"updated_at,notnull" json:"updatedAt"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Question is an immutable catalog entry; never mutated by gameplay.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string `bun:"id,pk" json:"id"`
	Category      string `bun:"category,notnull" json:"category"`
	CategoryIndex int    `bun:"category_index,notnull" json:"categoryIndex"`
	RoundIndex    int    `bun:"round_index,notnull" json:"roundIndex"`
	BaseValue     int    `bun:"base_value,notnull" json:"baseValue"`
	Prompt        string `bun:"prompt,notnull" json:"prompt"`
	Answer        string `bun:"answer,notnull" json:"answer"`
	IsDailyDouble bool   `bun:"is_daily_double,notnull" json:"isDailyDouble"`
}

// QuestionState is the lobby-scoped mutable instance of a catalog question.
// Timer fields are set only while the status is ACTIVE.
type QuestionState struct {
	bun.BaseModel `bun:"table:question_states,alias:qs"`

	ID           string         `bun:"id,pk" json:"id"`
	LobbyID      string         `bun:"lobby_id,notnull" json:"lobbyId"`
	QuestionID   string         `bun:"question_id,notnull" json:"questionId"`
	RoundIndex   int            `bun:"round_index,notnull" json:"roundIndex"`
	Value        int            `bun:"value,notnull" json:"value"`
	Status       QuestionStatus `bun:"status,notnull" json:"status"`
	ActivatedAt  *time.Time     `bun:"activated_at" json:"activatedAt,omitempty"`
	TimerEndsAt  *time.Time     `bun:"timer_ends_at" json:"timerEndsAt,omitempty"`
	SelectedByID *string        `bun:"selected_by_id" json:"selectedById,omitempty"`
	ResolvedByID *string        `bun:"resolved_by_id" json:"resolvedById,omitempty"`
	CreatedAt    time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull" json:"updatedAt"`

	Question *Question        `bun:"rel:belongs-to,join:question_id=id" json:"question,omitempty"`
	Attempts []*BuzzerAttempt `bun:"rel:has-many,join:id=question_state_id" json:"attempts"`
}

// BuzzerAttempt is one participant's ordered claim to answer the active
// question. OrderIndex is 0-based and equals arrival order.
type BuzzerAttempt struct {
	bun.BaseModel `bun:"table:buzzer_attempts,alias:ba"`

	ID              string     `bun:"id,pk" json:"id"`
	LobbyID         string     `bun:"lobby_id,notnull" json:"lobbyId"`
	ParticipantID   string     `bun:"participant_id,notnull" json:"participantId"`
	QuestionStateID string     `bun:"question_state_id,notnull" json:"questionStateId"`
	OrderIndex      int        `bun:"order_index,notnull" json:"orderIndex"`
	Result          BuzzResult `bun:"result,notnull" json:"result"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updatedAt"`

	Participant *Participant `bun:"rel:belongs-to,join:participant_id=id" json:"participant,omitempty"`
}

// ScoreEvent is an immutable ledger entry recording a point delta.
// A participant's score is the sum of their deltas; the Participant.Score
// counter must stay consistent with the ledger under every mutation.
type ScoreEvent struct {
	bun.BaseModel `bun:"table:score_events,alias:se"`

	ID              string    `bun:"id,pk" json:"id"`
	LobbyID         string    `bun:"lobby_id,notnull" json:"lobbyId"`
	ParticipantID   string    `bun:"participant_id,notnull" json:"participantId"`
	QuestionStateID *string   `bun:"question_state_id" json:"questionStateId"`
	Delta           int       `bun:"delta,notnull" json:"delta"`
	Reason          string    `bun:"reason,notnull" json:"reason"`
	UserID          string    `bun:"user_id,notnull" json:"userId"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"createdAt"`

	Participant   *Participant   `bun:"rel:belongs-to,join:participant_id=id" json:"participant,omitempty"`
	QuestionState *QuestionState `bun:"rel:belongs-to,join:question_state_id=id" json:"questionState,omitempty"`
}
