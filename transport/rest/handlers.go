package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-engine/transport/view"
)

type gameUseCase interface {
	StartGame(ctx context.Context) (*entity.Game, error)
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	PlayMove(ctx context.Context, id string, cell int) (*entity.Game, entity.MoveResult, error)
	ResetGame(ctx context.Context, id string) (*entity.Game, error)
	EndGame(ctx context.Context, id string) error
}

type turnRequest struct {
	Cell *int `json:"cell" binding:"required"`
}

type gameHandlers struct {
	logger *slog.Logger
	games  gameUseCase
}

func newGameHandlers(logger *slog.Logger, games gameUseCase) *gameHandlers {
	return &gameHandlers{
		logger: logger.With("component", "rest.games"),
		games:  games,
	}
}

func (that *gameHandlers) create(c *gin.Context) {
	game, err := that.games.StartGame(c.Request.Context())
	if err != nil {
		that.fail(c, "create", err)
		return
	}

	SuccessResponse(c, http.StatusCreated, view.NewGame(game))
}

func (that *gameHandlers) get(c *gin.Context) {
	game, err := that.games.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		that.fail(c, "get", err)
		return
	}

	SuccessResponse(c, http.StatusOK, view.NewGame(game))
}

func (that *gameHandlers) turn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "cell is required")
		return
	}

	game, result, err := that.games.PlayMove(c.Request.Context(), c.Param("id"), *req.Cell)
	if err != nil {
		that.fail(c, "turn", err)
		return
	}

	SuccessResponse(c, http.StatusOK, view.NewMove(game, result))
}

func (that *gameHandlers) reset(c *gin.Context) {
	game, err := that.games.ResetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		that.fail(c, "reset", err)
		return
	}

	SuccessResponse(c, http.StatusOK, view.NewGame(game))
}

func (that *gameHandlers) delete(c *gin.Context) {
	if err := that.games.EndGame(c.Request.Context(), c.Param("id")); err != nil {
		that.fail(c, "delete", err)
		return
	}

	SuccessResponse(c, http.StatusOK, map[string]any{"id": c.Param("id")})
}

func (that *gameHandlers) fail(c *gin.Context, method string, err error) {
	if errors.Is(err, usecase.ErrGameNotFound) {
		ErrorResponse(c, http.StatusNotFound, "game not found")
		return
	}

	that.logger.Error("request failed", "method", method, "game_id", c.Param("id"), "error", err)
	ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}
