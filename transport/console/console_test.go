package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
)

func runConsole(t *testing.T, input string, oneBased bool) string {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	games := usecase.NewGameUseCase(logger, repository.NewMemoryGameRepository(time.Hour))

	var out bytes.Buffer
	console := New(logger, games, strings.NewReader(input), &out, oneBased)

	require.NoError(t, console.Run(context.Background()))

	return out.String()
}

func TestConsole_Run(t *testing.T) {
	t.Run("Plays a winning game", func(t *testing.T) {
		// Given: moves where X takes the left column
		input := "0\n1\n3\n2\n6\nq\n"

		// When: the console runs
		out := runConsole(t, input, false)

		// Then: the win is announced
		assert.Contains(t, out, "Player X has won!")
		assert.Contains(t, out, "Bye!")
	})

	t.Run("Reports rejected moves", func(t *testing.T) {
		// Given: a double play on cell 0 and an out of range cell
		input := "0\n0\n42\n"

		// When: the console runs
		out := runConsole(t, input, false)

		// Then: both rejections are printed and O keeps the turn
		assert.Contains(t, out, "Move rejected: cell is already occupied")
		assert.Contains(t, out, "Move rejected: invalid cell index")
		assert.Contains(t, out, "It's Player O's turn")
	})

	t.Run("One-based input maps to board cells", func(t *testing.T) {
		// Given: one-based numbering and X playing 1, 5, 9 on the diagonal
		input := "1\n2\n5\n3\n9\n"

		// When: the console runs
		out := runConsole(t, input, true)

		// Then: X wins on the main diagonal
		assert.Contains(t, out, "Player X has won!")
		assert.Contains(t, out, "Enter a cell number 1-9")
	})

	t.Run("One-based rejections use the typed number", func(t *testing.T) {
		// Given: one-based numbering, an out of range 0 and a replay of cell 1
		input := "0\n1\n1\n"

		// When: the console runs
		out := runConsole(t, input, true)

		// Then: the reasons name the cells as typed
		assert.Contains(t, out, "Move rejected: invalid cell index: cell 0")
		assert.Contains(t, out, "Move rejected: cell is already occupied: cell 1")
		assert.NotContains(t, out, "cell -1")
	})

	t.Run("Reset clears the board", func(t *testing.T) {
		input := "4\nr\n"

		out := runConsole(t, input, false)

		lastBoard := out[strings.LastIndex(out, " 0 | 1 | 2 "):]
		assert.Contains(t, lastBoard, " 3 | 4 | 5 ")
		assert.Contains(t, lastBoard, "It's Player X's turn")
	})

	t.Run("Unknown command prints a hint", func(t *testing.T) {
		out := runConsole(t, "hello\n", false)

		assert.Contains(t, out, "unknown command")
	})

}

type endSpy struct {
	usecase.GameUseCase
	started string
	ended   string
}

func (that *endSpy) StartGame(ctx context.Context) (*entity.Game, error) {
	game, err := that.GameUseCase.StartGame(ctx)
	if err == nil {
		that.started = game.ID
	}
	return game, err
}

func (that *endSpy) EndGame(ctx context.Context, id string) error {
	that.ended = id
	return that.GameUseCase.EndGame(ctx, id)
}

func TestConsole_RunEndsSession(t *testing.T) {
	// Given: a use case that records the session lifecycle
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	repo := repository.NewMemoryGameRepository(time.Hour)
	spy := &endSpy{GameUseCase: usecase.NewGameUseCase(logger, repo)}

	// When: the console quits
	console := New(logger, spy, strings.NewReader("q\n"), io.Discard, false)
	require.NoError(t, console.Run(context.Background()))

	// Then: the started session was ended and removed
	require.NotEmpty(t, spy.started)
	assert.Equal(t, spy.started, spy.ended)

	_, err := repo.GetByID(context.Background(), spy.started)
	assert.ErrorIs(t, err, repository.ErrGameNotFound)
}

func TestConsole_RunRestartsExpiredGame(t *testing.T) {
	for _, command := range []string{"4", "r"} {
		t.Run(command, func(t *testing.T) {
			// Given: sessions that expire almost immediately
			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			games := usecase.NewGameUseCase(logger, repository.NewMemoryGameRepository(time.Millisecond))
			reader, writer := io.Pipe()

			var out bytes.Buffer
			console := New(logger, games, reader, &out, false)

			done := make(chan error, 1)
			go func() { done <- console.Run(context.Background()) }()

			// When: the player comes back after the session expired
			time.Sleep(20 * time.Millisecond)
			_, err := io.WriteString(writer, command+"\nq\n")
			require.NoError(t, err)
			require.NoError(t, writer.Close())

			// Then: a new game is started and the console keeps running
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("console did not stop")
			}

			assert.Contains(t, out.String(), "a new game has started")
			assert.Contains(t, out.String(), "Bye!")
		})
	}
}

func TestConsole_RunStopsOnCancel(t *testing.T) {
	// Given: an input that never ends
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	games := usecase.NewGameUseCase(logger, repository.NewMemoryGameRepository(time.Hour))
	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	console := New(logger, games, reader, io.Discard, false)

	done := make(chan error, 1)
	go func() { done <- console.Run(ctx) }()

	// When: the context is cancelled
	cancel()

	// Then: Run returns
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop")
	}
}
