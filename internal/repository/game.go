package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
	ErrTxConflict   = errors.New("too many concurrent updates")
)

const maxTxRetries = 5

var tracer = otel.Tracer("repository.game")

// UpdateFunc mutates the loaded game in place and reports whether it must be written back.
type UpdateFunc func(game *entity.Game) bool

// GameRepository holds live game sessions. Finished sessions are not archived.
type GameRepository interface {
	Create(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	// Update is the only way to change a stored game; concurrent calls on one id are serialized.
	Update(ctx context.Context, id string, fn UpdateFunc) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type dbGame struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGameRepository(client *redis.Client, ttl time.Duration) GameRepository {
	return &dbGame{
		client: client,
		ttl:    ttl,
	}
}

func gameKey(id string) string {
	return "game:" + id
}

func (that *dbGame) Create(ctx context.Context, game *entity.Game) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Create", trace.WithAttributes(attribute.String("game.id", game.ID)))
	defer span.End()

	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	created, err := that.client.SetNX(ctx, gameKey(game.ID), gameJSON, that.ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set game")
		return fmt.Errorf("failed to set game: %w", err)
	}

	if !created {
		return ErrGameExists
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.GetByID", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	game, err := that.get(ctx, that.client, id)
	if err != nil && !errors.Is(err, ErrGameNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get game")
	}

	return game, err
}

func (that *dbGame) Update(ctx context.Context, id string, fn UpdateFunc) (*entity.Game, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.Update", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	key := gameKey(id)

	var updated *entity.Game
	txf := func(tx *redis.Tx) error {
		game, err := that.get(ctx, tx, id)
		if err != nil {
			return err
		}

		if !fn(game) {
			updated = game
			return nil
		}

		gameJSON, err := json.Marshal(game)
		if err != nil {
			return fmt.Errorf("could not marshal game: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, gameJSON, that.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		updated = game
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			span.AddEvent("transaction conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
			continue
		}

		if err != nil {
			if !errors.Is(err, ErrGameNotFound) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "update game")
			}
			return nil, fmt.Errorf("failed to update game: %w", err)
		}

		return updated, nil
	}

	span.SetStatus(codes.Error, ErrTxConflict.Error())
	return nil, ErrTxConflict
}

func (that *dbGame) DeleteByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "GameRepository.DeleteByID", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	deleted, err := that.client.Del(ctx, gameKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete game")
		return fmt.Errorf("failed to delete game by ID: %w", err)
	}

	if deleted == 0 {
		return ErrGameNotFound
	}

	return nil
}

func (that *dbGame) get(ctx context.Context, client getter, id string) (*entity.Game, error) {
	response, err := client.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var game entity.Game
	if err = json.Unmarshal([]byte(response), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &game, nil
}
