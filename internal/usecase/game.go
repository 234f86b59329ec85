package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository"
)

// ErrGameNotFound is returned when a session id is unknown or has expired.
var ErrGameNotFound = repository.ErrGameNotFound

var tracer = otel.Tracer("usecase.game")

type GameUseCase interface {
	StartGame(ctx context.Context) (*entity.Game, error)
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	// PlayMove returns an error only when the session cannot be loaded or stored.
	// Rejected moves come back as a MoveResult with Accepted=false.
	PlayMove(ctx context.Context, id string, cell int) (*entity.Game, entity.MoveResult, error)
	ResetGame(ctx context.Context, id string) (*entity.Game, error)
	EndGame(ctx context.Context, id string) error
}

type gameRepo interface {
	Create(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	Update(ctx context.Context, id string, fn repository.UpdateFunc) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

type gameUseCase struct {
	logger *slog.Logger
	repo   gameRepo
	newID  func() string
}

func NewGameUseCase(logger *slog.Logger, repo gameRepo) GameUseCase {
	return &gameUseCase{
		logger: logger.With("component", "usecase.game"),
		repo:   repo,
		newID:  uuid.NewString,
	}
}

func (that *gameUseCase) StartGame(ctx context.Context) (*entity.Game, error) {
	log := that.logger.With("method", "StartGame")

	ctx, span := tracer.Start(ctx, "GameUseCase.StartGame")
	defer span.End()

	game := entity.NewGame(that.newID())
	span.SetAttributes(attribute.String("game.id", game.ID))

	if err := that.repo.Create(ctx, game); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Debug("game started", "game_id", game.ID)

	return game, nil
}

func (that *gameUseCase) GetGame(ctx context.Context, id string) (*entity.Game, error) {
	ctx, span := tracer.Start(ctx, "GameUseCase.GetGame", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	game, err := that.repo.GetByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

func (that *gameUseCase) PlayMove(ctx context.Context, id string, cell int) (*entity.Game, entity.MoveResult, error) {
	log := that.logger.With("method", "PlayMove", "game_id", id, "cell", cell)

	ctx, span := tracer.Start(ctx, "GameUseCase.PlayMove", trace.WithAttributes(
		attribute.String("game.id", id),
		attribute.Int("game.cell", cell),
	))
	defer span.End()

	var result entity.MoveResult
	game, err := that.repo.Update(ctx, id, func(game *entity.Game) bool {
		result = game.PlayMove(cell)
		return result.Accepted
	})
	if err != nil {
		recordError(span, err)
		return nil, entity.MoveResult{}, fmt.Errorf("failed to play move: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("move.accepted", result.Accepted),
		attribute.String("game.status", string(game.Status)),
	)

	if !result.Accepted {
		log.Debug("move rejected", "reason", result.Reason)
		return game, result, nil
	}

	if game.IsFinished() {
		log.Info("game finished", "status", game.Status, "winner", game.Winner)
	}

	return game, result, nil
}

func (that *gameUseCase) ResetGame(ctx context.Context, id string) (*entity.Game, error) {
	ctx, span := tracer.Start(ctx, "GameUseCase.ResetGame", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	game, err := that.repo.Update(ctx, id, func(game *entity.Game) bool {
		game.Reset()
		return true
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to reset game: %w", err)
	}

	return game, nil
}

func (that *gameUseCase) EndGame(ctx context.Context, id string) error {
	log := that.logger.With("method", "EndGame", "game_id", id)

	ctx, span := tracer.Start(ctx, "GameUseCase.EndGame", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	if err := that.repo.DeleteByID(ctx, id); err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to end game: %w", err)
	}

	log.Debug("game ended")

	return nil
}

// recordError marks the span failed unless err is a missing session, which is routine.
func recordError(span trace.Span, err error) {
	if errors.Is(err, ErrGameNotFound) {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
