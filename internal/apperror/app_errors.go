package apperror

import "errors"

// Move rejection reasons. They are carried in entity.MoveResult, not returned.
var (
	ErrGameFinished = errors.New("game is already finished")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrCellOccupied = errors.New("cell is already occupied")
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrNotConnected   = errors.New("not connected to a game")
	ErrInvalidPayload = errors.New("invalid payload")
)
