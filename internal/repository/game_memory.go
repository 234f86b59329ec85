package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

type memoryEntry struct {
	game      *entity.Game
	expiresAt time.Time
}

type memoryGame struct {
	mu    sync.Mutex
	games map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryGameRepository keeps sessions in process memory. Entries expire lazily on access.
func NewMemoryGameRepository(ttl time.Duration) GameRepository {
	return newMemoryGameRepository(ttl, time.Now)
}

func newMemoryGameRepository(ttl time.Duration, now func() time.Time) *memoryGame {
	return &memoryGame{
		games: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   now,
	}
}

func (that *memoryGame) Create(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.lookup(game.ID); ok {
		return ErrGameExists
	}

	that.store(game)

	return nil
}

func (that *memoryGame) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.lookup(id)
	if !ok {
		return nil, ErrGameNotFound
	}

	return game.Clone(), nil
}

func (that *memoryGame) Update(_ context.Context, id string, fn UpdateFunc) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.lookup(id)
	if !ok {
		return nil, ErrGameNotFound
	}

	working := game.Clone()
	if fn(working) {
		that.store(working)
	}

	return working.Clone(), nil
}

func (that *memoryGame) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.lookup(id); !ok {
		return ErrGameNotFound
	}

	delete(that.games, id)

	return nil
}

// lookup must be called with mu held.
func (that *memoryGame) lookup(id string) (*entity.Game, bool) {
	entry, ok := that.games[id]
	if !ok {
		return nil, false
	}

	if !that.now().Before(entry.expiresAt) {
		delete(that.games, id)
		return nil, false
	}

	return entry.game, true
}

// store must be called with mu held.
func (that *memoryGame) store(game *entity.Game) {
	that.games[game.ID] = memoryEntry{
		game:      game.Clone(),
		expiresAt: that.now().Add(that.ttl),
	}
}
