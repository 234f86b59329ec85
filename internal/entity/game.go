package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
)

// Mark is the symbol a player places in a cell. EmptyCell marks an unplayed cell.
type Mark string

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
)

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	if that == PlayerX {
		return PlayerO
	}
	return PlayerX
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusDraw       Status = "draw"
)

const BoardSize = 9

// Board is read left-to-right, top-to-bottom.
type Board [BoardSize]Mark

// WinLines is scanned in this order: rows, columns, then the two diagonals.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

type Game struct {
	ID     string `json:"id"`
	Board  Board  `json:"board"`
	Turn   Mark   `json:"turn"`
	Status Status `json:"status"`
	Winner Mark   `json:"winner,omitempty"`
	Line   []int  `json:"line,omitempty"`
	Moves  int    `json:"moves"`
}

// MoveResult describes the outcome of a single PlayMove call.
// A rejected move leaves the game untouched and carries the reason.
type MoveResult struct {
	Accepted bool
	Cell     int
	Mark     Mark
	Status   Status
	Winner   Mark
	Reason   error
}

func NewGame(id string) *Game {
	game := &Game{ID: id}
	game.Reset()

	return game
}

// PlayMove places the current player's mark on cell and re-derives the game status.
// Invalid or illegal moves are routine input: they return a rejected result and never panic.
func (that *Game) PlayMove(cell int) MoveResult {
	if reason := that.validateMove(cell); reason != nil {
		return MoveResult{
			Cell:   cell,
			Status: that.Status,
			Winner: that.Winner,
			Reason: reason,
		}
	}

	mark := that.Turn
	that.Board[cell] = mark
	that.Moves++

	that.updateGameState()

	if that.IsInProgress() {
		that.Turn = mark.Opponent()
	}

	return MoveResult{
		Accepted: true,
		Cell:     cell,
		Mark:     mark,
		Status:   that.Status,
		Winner:   that.Winner,
	}
}

// Reset restores the initial state: empty board, X to move, in progress.
func (that *Game) Reset() {
	that.Board = Board{}
	that.Turn = PlayerX
	that.Status = StatusInProgress
	that.Winner = EmptyCell
	that.Line = nil
	that.Moves = 0
}

// StatusMessage is a pure function of the state, meant for display.
func (that *Game) StatusMessage() string {
	switch that.Status {
	case StatusWon:
		return fmt.Sprintf("Player %s has won!", that.Winner)
	case StatusDraw:
		return "Game ended in a draw!"
	default:
		return fmt.Sprintf("It's Player %s's turn", that.Turn)
	}
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusWon || that.Status == StatusDraw
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

// EmptyCells returns the indexes of unplayed cells in board order.
func (that *Game) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, mark := range that.Board {
		if mark == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

// Clone returns a deep copy.
func (that *Game) Clone() *Game {
	clone := *that
	if that.Line != nil {
		clone.Line = append([]int(nil), that.Line...)
	}

	return &clone
}

func (that *Game) validateMove(cell int) error {
	if !that.IsInProgress() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != EmptyCell {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	return nil
}

func (that *Game) updateGameState() {
	winner, line, ok := DetermineWinner(that.Board)
	switch {
	case ok:
		that.Status = StatusWon
		that.Winner = winner
		that.Line = line[:]
	case that.Board.IsFull():
		that.Status = StatusDraw
	default:
		that.Status = StatusInProgress
	}
}

// DetermineWinner returns the mark on the first uniform, non-empty win line.
func DetermineWinner(board Board) (Mark, [3]int, bool) {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return a, line, true
		}
	}

	return EmptyCell, [3]int{}, false
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}
