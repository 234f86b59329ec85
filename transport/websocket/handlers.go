package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-engine/internal/validator"
	"github.com/rocketscienceinc/tictactoe-engine/transport/view"
)

// handleConnect binds the connection to the requested game, or to a new one when the id is empty or expired.
func (that *Server) handleConnect(ctx context.Context, sess *session, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq connectPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
			that.sendErrorResponse(sess, msg.Action, "invalid payload")
			return nil
		}
	}

	var (
		game *entity.Game
		err  error
	)

	if payloadReq.GameID != "" {
		game, err = that.games.GetGame(ctx, payloadReq.GameID)
		if err != nil && !errors.Is(err, usecase.ErrGameNotFound) {
			that.sendErrorResponse(sess, msg.Action, "failed to load the game")
			return fmt.Errorf("failed to get game: %w", err)
		}
	}

	if game == nil {
		game, err = that.games.StartGame(ctx)
		if err != nil {
			that.sendErrorResponse(sess, msg.Action, "failed to create a new game")
			return fmt.Errorf("failed to start game: %w", err)
		}
	}

	sess.gameID = game.ID

	log.Debug("connection bound to game", "game_id", game.ID)

	return that.sendMessage(sess, msg.Action, ResponsePayload{Game: view.NewGame(game)})
}

func (that *Server) handleGameTurn(ctx context.Context, sess *session, msg *Message) error {
	if sess.gameID == "" {
		that.sendErrorResponse(sess, msg.Action, apperror.ErrNotConnected.Error())
		return nil
	}

	var payloadReq turnPayload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		that.sendErrorResponse(sess, msg.Action, "invalid payload")
		return nil
	}

	if err := validator.Struct(payloadReq); err != nil {
		that.sendErrorResponse(sess, msg.Action, "cell is required")
		return nil
	}

	game, result, err := that.games.PlayMove(ctx, sess.gameID, *payloadReq.Cell)
	if err != nil {
		return that.handleUseCaseError(sess, msg.Action, err)
	}

	accepted := result.Accepted
	payloadResp := ResponsePayload{
		Game:     view.NewGame(game),
		Cell:     &result.Cell,
		Mark:     string(result.Mark),
		Accepted: &accepted,
	}
	if result.Reason != nil {
		payloadResp.Reason = result.Reason.Error()
	}

	return that.sendMessage(sess, msg.Action, payloadResp)
}

func (that *Server) handleGameReset(ctx context.Context, sess *session, msg *Message) error {
	if sess.gameID == "" {
		that.sendErrorResponse(sess, msg.Action, apperror.ErrNotConnected.Error())
		return nil
	}

	game, err := that.games.ResetGame(ctx, sess.gameID)
	if err != nil {
		return that.handleUseCaseError(sess, msg.Action, err)
	}

	return that.sendMessage(sess, msg.Action, ResponsePayload{Game: view.NewGame(game)})
}

// handleGameLeave drops the bound game. The connection stays open for a new connect.
func (that *Server) handleGameLeave(ctx context.Context, sess *session, msg *Message) error {
	if sess.gameID == "" {
		return that.sendMessage(sess, msg.Action, ResponsePayload{})
	}

	gameID := sess.gameID
	sess.gameID = ""

	if err := that.games.EndGame(ctx, gameID); err != nil && !errors.Is(err, usecase.ErrGameNotFound) {
		that.sendErrorResponse(sess, msg.Action, "failed to leave the game")
		return fmt.Errorf("failed to end game: %w", err)
	}

	return that.sendMessage(sess, msg.Action, ResponsePayload{})
}

func (that *Server) handleUseCaseError(sess *session, action string, err error) error {
	if errors.Is(err, usecase.ErrGameNotFound) {
		sess.gameID = ""
		that.sendErrorResponse(sess, action, "game not found")
		return nil
	}

	that.sendErrorResponse(sess, action, "internal error")

	return err
}

func (that *Server) sendMessage(sess *session, action string, payload ResponsePayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	response, err := json.Marshal(Message{Action: action, Payload: payloadBytes})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err = sess.write(websocket.TextMessage, response); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Server) sendErrorResponse(sess *session, action, errorMsg string) {
	if err := that.sendMessage(sess, action, ResponsePayload{Error: errorMsg}); err != nil {
		that.logger.Debug("failed to send error response", "action", action, "error", err)
	}
}
