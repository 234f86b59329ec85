package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (that *fakeClock) Now() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.now
}

func (that *fakeClock) Advance(d time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.now = that.now.Add(d)
}

func TestMemoryGameRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and GetByID round trip", func(t *testing.T) {
		// Given: an empty repository
		repo := NewMemoryGameRepository(time.Hour)
		game := entity.NewGame("g1")

		// When: a game is created and fetched
		require.NoError(t, repo.Create(ctx, game))
		got, err := repo.GetByID(ctx, "g1")

		// Then: the stored copy matches
		require.NoError(t, err)
		assert.Equal(t, game, got)
	})

	t.Run("Create twice returns ErrGameExists", func(t *testing.T) {
		repo := NewMemoryGameRepository(time.Hour)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		err := repo.Create(ctx, entity.NewGame("g1"))

		assert.ErrorIs(t, err, ErrGameExists)
	})

	t.Run("Stored game is isolated from caller mutations", func(t *testing.T) {
		// Given: a stored game
		repo := NewMemoryGameRepository(time.Hour)
		game := entity.NewGame("g1")
		require.NoError(t, repo.Create(ctx, game))

		// When: the caller's copies are mutated
		game.PlayMove(0)
		got, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		got.PlayMove(4)

		// Then: the stored game is untouched
		stored, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, entity.Board{}, stored.Board)
	})

	t.Run("Update persists only when fn reports a change", func(t *testing.T) {
		// Given: a stored game
		repo := NewMemoryGameRepository(time.Hour)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		// When: an update returns false
		_, err := repo.Update(ctx, "g1", func(game *entity.Game) bool {
			game.PlayMove(0)
			return false
		})
		require.NoError(t, err)

		// Then: nothing was stored
		got, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, got.Board[0])

		// When: an update returns true
		updated, err := repo.Update(ctx, "g1", func(game *entity.Game) bool {
			return game.PlayMove(0).Accepted
		})
		require.NoError(t, err)

		// Then: the move is stored
		got, err = repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, got.Board[0])
		assert.Equal(t, updated, got)
	})

	t.Run("Update on missing game returns ErrGameNotFound", func(t *testing.T) {
		repo := NewMemoryGameRepository(time.Hour)

		_, err := repo.Update(ctx, "nope", func(*entity.Game) bool { return true })

		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Concurrent updates are serialized", func(t *testing.T) {
		// Given: a stored game
		repo := NewMemoryGameRepository(time.Hour)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		// When: many goroutines try to play the same cell
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, "g1", func(game *entity.Game) bool {
					ok := game.PlayMove(4).Accepted
					if ok {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
					return ok
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// Then: exactly one move landed
		got, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 1, accepted)
		assert.Equal(t, 1, got.Moves)
	})

	t.Run("Entries expire after the ttl", func(t *testing.T) {
		// Given: a stored game and a controllable clock
		clock := &fakeClock{now: time.Unix(0, 0)}
		repo := newMemoryGameRepository(time.Minute, clock.Now)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		// When: less than the ttl passes
		clock.Advance(30 * time.Second)

		// Then: the game is still there
		_, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)

		// When: the ttl elapses
		clock.Advance(time.Minute)

		// Then: the game is gone
		_, err = repo.GetByID(ctx, "g1")
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Update refreshes the ttl", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		repo := newMemoryGameRepository(time.Minute, clock.Now)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		clock.Advance(50 * time.Second)
		_, err := repo.Update(ctx, "g1", func(game *entity.Game) bool {
			return game.PlayMove(0).Accepted
		})
		require.NoError(t, err)
		clock.Advance(50 * time.Second)

		_, err = repo.GetByID(ctx, "g1")
		assert.NoError(t, err)
	})

	t.Run("DeleteByID removes the game", func(t *testing.T) {
		repo := NewMemoryGameRepository(time.Hour)
		require.NoError(t, repo.Create(ctx, entity.NewGame("g1")))

		require.NoError(t, repo.DeleteByID(ctx, "g1"))

		_, err := repo.GetByID(ctx, "g1")
		assert.ErrorIs(t, err, ErrGameNotFound)
		assert.ErrorIs(t, repo.DeleteByID(ctx, "g1"), ErrGameNotFound)
	})
}
