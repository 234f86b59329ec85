package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-engine/transport/view"
)

const (
	actionConnect   = "connect"
	actionGameTurn  = "game:turn"
	actionGameReset = "game:reset"
	actionGameLeave = "game:leave"
	actionError     = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type connectPayload struct {
	GameID string `json:"game_id"`
}

type turnPayload struct {
	Cell *int `json:"cell" validate:"required"`
}

type ResponsePayload struct {
	Game     *view.Game `json:"game,omitempty"`
	Cell     *int       `json:"cell,omitempty"`
	Mark     string     `json:"mark,omitempty"`
	Accepted *bool      `json:"accepted,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Error    string     `json:"error,omitempty"`
}
