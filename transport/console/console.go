package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
)

type gameUseCase interface {
	StartGame(ctx context.Context) (*entity.Game, error)
	PlayMove(ctx context.Context, id string, cell int) (*entity.Game, entity.MoveResult, error)
	ResetGame(ctx context.Context, id string) (*entity.Game, error)
	EndGame(ctx context.Context, id string) error
}

// Console runs a hot-seat game over a line-oriented reader and writer.
type Console struct {
	logger   *slog.Logger
	games    gameUseCase
	in       io.Reader
	out      io.Writer
	oneBased bool
}

func New(logger *slog.Logger, games gameUseCase, in io.Reader, out io.Writer, oneBased bool) *Console {
	return &Console{
		logger:   logger.With("component", "console"),
		games:    games,
		in:       in,
		out:      out,
		oneBased: oneBased,
	}
}

// Run plays until quit, end of input or ctx cancellation. The session is ended on return.
func (that *Console) Run(ctx context.Context) error {
	game, err := that.games.StartGame(ctx)
	if err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	defer func() {
		if err := that.games.EndGame(context.WithoutCancel(ctx), game.ID); err != nil {
			that.logger.Warn("failed to end game", "game_id", game.ID, "error", err)
		}
	}()

	that.printHelp()
	that.render(game)

	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(that.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		that.prompt(game)

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				return nil
			}
			line = l
		}

		next, quit, err := that.handle(ctx, game, strings.TrimSpace(line))
		if err != nil {
			return err
		}

		if quit {
			that.println("Bye!")
			return nil
		}

		game = next
	}
}

func (that *Console) handle(ctx context.Context, game *entity.Game, command string) (*entity.Game, bool, error) {
	switch strings.ToLower(command) {
	case "":
		return game, false, nil
	case "q", "quit", "exit":
		return game, true, nil
	case "r", "reset":
		reset, err := that.games.ResetGame(ctx, game.ID)
		if errors.Is(err, usecase.ErrGameNotFound) {
			restarted, err := that.restart(ctx, game.ID)
			return restarted, false, err
		}
		if err != nil {
			return nil, false, err
		}
		that.render(reset)
		return reset, false, nil
	case "h", "help", "?":
		that.printHelp()
		return game, false, nil
	}

	cell, err := that.parseCell(command)
	if err != nil {
		that.println(err.Error())
		return game, false, nil
	}

	updated, result, err := that.games.PlayMove(ctx, game.ID, cell)
	if errors.Is(err, usecase.ErrGameNotFound) {
		restarted, err := that.restart(ctx, game.ID)
		return restarted, false, err
	}
	if err != nil {
		return nil, false, err
	}

	if !result.Accepted {
		that.println(rejection(result.Reason, command))
	}

	that.render(updated)

	return updated, false, nil
}

// restart replaces a session that expired while the player was idle.
func (that *Console) restart(ctx context.Context, expiredID string) (*entity.Game, error) {
	game, err := that.games.StartGame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}

	that.logger.Info("session expired, new game started", "expired_id", expiredID, "game_id", game.ID)

	that.println("The game expired while idle, a new game has started.")
	that.render(game)

	return game, nil
}

// rejection names the cell the way the player typed it.
func rejection(reason error, typed string) string {
	for _, sentinel := range []error{apperror.ErrInvalidCell, apperror.ErrCellOccupied} {
		if errors.Is(reason, sentinel) {
			return fmt.Sprintf("Move rejected: %v: cell %s", sentinel, typed)
		}
	}

	return "Move rejected: " + reason.Error()
}

func (that *Console) parseCell(command string) (int, error) {
	n, err := strconv.Atoi(command)
	if err != nil {
		return 0, errors.New("unknown command, type h for help")
	}

	if that.oneBased {
		return n - 1, nil
	}

	return n, nil
}

func (that *Console) render(game *entity.Game) {
	var b strings.Builder

	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("---+---+---\n")
		}

		for col := 0; col < 3; col++ {
			idx := row*3 + col
			if col > 0 {
				b.WriteString("|")
			}
			fmt.Fprintf(&b, " %s ", that.cellLabel(game.Board[idx], idx))
		}
		b.WriteString("\n")
	}

	b.WriteString(game.StatusMessage())
	b.WriteString("\n")

	that.print(b.String())
}

// cellLabel shows the mark, or the number to type for an empty cell.
func (that *Console) cellLabel(mark entity.Mark, idx int) string {
	if mark != entity.EmptyCell {
		return string(mark)
	}

	if that.oneBased {
		return strconv.Itoa(idx + 1)
	}

	return strconv.Itoa(idx)
}

func (that *Console) prompt(game *entity.Game) {
	if game.IsFinished() {
		that.print("r to play again, q to quit> ")
		return
	}

	that.print(fmt.Sprintf("%s> ", game.Turn))
}

func (that *Console) printHelp() {
	first, last := 0, 8
	if that.oneBased {
		first, last = 1, 9
	}

	that.println(fmt.Sprintf("Enter a cell number %d-%d to play, r to reset, q to quit.", first, last))
}

func (that *Console) println(s string) {
	that.print(s + "\n")
}

func (that *Console) print(s string) {
	if _, err := io.WriteString(that.out, s); err != nil {
		that.logger.Debug("failed to write output", "error", err)
	}
}
