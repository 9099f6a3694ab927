package engine

import "fmt"

// Error codes surfaced to clients. These match the wire protocol's
// error codes one to one.
const (
	CodeInvalidAction = "INVALID_ACTION"
	CodeOutOfTurn     = "OUT_OF_TURN"
	CodeInvalidAmount = "INVALID_AMOUNT"
	CodeNotInGame     = "NOT_IN_GAME"
	CodeGameFull      = "GAME_FULL"
	CodeAlreadySeated = "ALREADY_IN_GAME"
)

// Error is a coded engine error. Validation failures never advance
// state; callers map the code straight onto a wire error.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
