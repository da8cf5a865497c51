// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeSessionAlreadyComplete Code = "SESSION_ALREADY_COMPLETED"

	// Game-rule errors
	CodeIllegalMove   Code = "ILLEGAL_MOVE"
	CodeGameOver      Code = "GAME_ALREADY_OVER"
	CodeWrongTurn     Code = "WRONG_TURN"
	CodeInvalidMove   Code = "INVALID_MOVE_FORMAT"
	CodeUnknownGame   Code = "UNKNOWN_GAME_TYPE"
	CodeSeatTaken     Code = "SEAT_ALREADY_TAKEN"
	CodeIdentityLock  Code = "IDENTITY_ALREADY_LOCKED"
	CodeInvalidNonce  Code = "INVALID_SESSION_NONCE"
	CodeNotIdentified Code = "PLAYER_NOT_IDENTIFIED"

	// Replay-integrity errors
	CodeMissingStartEvent Code = "MISSING_START_EVENT"
	CodeStateMismatch     Code = "STATE_MISMATCH"
	CodeInvalidSequence   Code = "INVALID_SEQUENCE"
	CodeReplayNotFound    Code = "REPLAY_NOT_FOUND"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)
