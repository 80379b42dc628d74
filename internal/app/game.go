package app

// Gameplay constants. These are part of the contract, not tunables.
const (
	// MaxPlayers caps player seats per lobby; the admin sits outside the cap.
	MaxPlayers = 4
	// QuestionTimerSeconds is the buzz window armed on select and re-armed
	// on every successful buzz.
	QuestionTimerSeconds = 30

	// codeAlphabet excludes visually similar characters (0/O, 1/I).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	// codeAttempts bounds collision retries before giving up.
	codeAttempts = 10

	// DefaultScoreEventLimit is the ledger page size when none is given.
	DefaultScoreEventLimit = 25
)

// RoundValues are the base point values per round column.
var RoundValues = [2][4]int{
	{100, 200, 300, 500},
	{200, 400, 600, 1000},
}
