package view

import (
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// Game is the client-facing representation of a session.
type Game struct {
	ID      string        `json:"id"`
	Board   [9]string     `json:"board"`
	Turn    entity.Mark   `json:"turn"`
	Status  entity.Status `json:"status"`
	Winner  entity.Mark   `json:"winner,omitempty"`
	Line    []int         `json:"line,omitempty"`
	Moves   int           `json:"moves"`
	Message string        `json:"message"`
}

// Move reports the outcome of one move attempt alongside the resulting game.
type Move struct {
	Accepted bool        `json:"accepted"`
	Cell     int         `json:"cell"`
	Mark     entity.Mark `json:"mark,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Game     *Game       `json:"game"`
}

func NewGame(game *entity.Game) *Game {
	if game == nil {
		return nil
	}

	var board [9]string
	for i, mark := range game.Board {
		board[i] = string(mark)
	}

	return &Game{
		ID:      game.ID,
		Board:   board,
		Turn:    game.Turn,
		Status:  game.Status,
		Winner:  game.Winner,
		Line:    game.Line,
		Moves:   game.Moves,
		Message: game.StatusMessage(),
	}
}

func NewMove(game *entity.Game, result entity.MoveResult) *Move {
	move := &Move{
		Accepted: result.Accepted,
		Cell:     result.Cell,
		Mark:     result.Mark,
		Game:     NewGame(game),
	}

	if result.Reason != nil {
		move.Reason = result.Reason.Error()
	}

	return move
}
