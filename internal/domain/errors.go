package domain

import "errors"

// Business-rule errors. Every rejected operation surfaces one of these;
// infrastructure failures are wrapped separately and never masked as a
// rule violation.
var (
	// ErrNotAuthenticated is returned when no verified identity is attached
	// to the request.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAdminRequired is returned when a non-admin calls an admin-only operation.
	ErrAdminRequired = errors.New("only the lobby admin may perform this action")
	// ErrNotAMember is returned when the caller has no seat in the lobby.
	ErrNotAMember = errors.New("no seat in this lobby")
	// ErrPlayersOnly is returned when a non-player tries to buzz.
	ErrPlayersOnly = errors.New("only players may buzz")
	// ErrInactiveParticipant is returned when a participant who left tries to act.
	ErrInactiveParticipant = errors.New("participant is not active")
	// ErrLobbyNotFound is returned for an unknown join code or lobby id.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrLobbyFull is returned when all player seats are taken.
	ErrLobbyFull = errors.New("lobby is already full")
	// ErrWrongLobby is returned when a referenced row belongs to another lobby.
	ErrWrongLobby = errors.New("does not belong to this lobby")
	// ErrInvalidTransition is returned when a status precondition is violated.
	ErrInvalidTransition = errors.New("invalid question state transition")
	// ErrQuestionAlreadyActive guards the at-most-one-active-question invariant.
	ErrQuestionAlreadyActive = errors.New("another question is already active")
	// ErrNoActiveQuestion is returned when buzzing with no question in play.
	ErrNoActiveQuestion = errors.New("no active question to buzz on")
	// ErrTimerExpired is returned when buzzing after the window closed.
	ErrTimerExpired = errors.New("the buzz timer has already expired")
	// ErrAlreadyBuzzed is returned on a second buzz for the same question.
	ErrAlreadyBuzzed = errors.New("already buzzed on this question")
	// ErrAttemptNotFound is returned for an unknown or foreign buzz attempt.
	ErrAttemptNotFound = errors.New("buzz attempt not found")
	// ErrAlreadyResolved is returned when adjudicating a non-pending attempt.
	ErrAlreadyResolved = errors.New("buzz attempt already adjudicated")
	// ErrQuestionNotActive is returned when the attempt's question left ACTIVE.
	ErrQuestionNotActive = errors.New("question is no longer active")
	// ErrNoQuestionsSeeded is returned when the catalog is empty.
	ErrNoQuestionsSeeded = errors.New("no questions seeded")
	// ErrCodeGenerationExhausted is returned when all code attempts collided.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique lobby code")
	// ErrEmailOrUsernameTaken is returned on a duplicate registration.
	ErrEmailOrUsernameTaken = errors.New("email or username already taken")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a malformed input shape with a field hint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validationf builds a ValidationError for a field.
func Validationf(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
