package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var tracer = otel.Tracer("transport.websocket")

type gameUseCase interface {
	StartGame(ctx context.Context) (*entity.Game, error)
	GetGame(ctx context.Context, id string) (*entity.Game, error)
	PlayMove(ctx context.Context, id string, cell int) (*entity.Game, entity.MoveResult, error)
	ResetGame(ctx context.Context, id string) (*entity.Game, error)
	EndGame(ctx context.Context, id string) error
}

type handlerFunc func(ctx context.Context, sess *session, msg *Message) error

// Server upgrades HTTP requests and serves one game session per connection.
type Server struct {
	logger   *slog.Logger
	games    gameUseCase
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

func New(logger *slog.Logger, games gameUseCase) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		games:  games,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		sessions: make(map[*session]struct{}),
	}

	server.handlers = map[string]handlerFunc{
		actionConnect:   server.handleConnect,
		actionGameTurn:  server.handleGameTurn,
		actionGameReset: server.handleGameReset,
		actionGameLeave: server.handleGameLeave,
	}

	return server
}

func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	sess := newSession(conn)
	if !that.register(sess) {
		_ = conn.Close()
		return
	}
	defer that.unregister(sess)

	log.Debug("WebSocket connection established", "remote", r.RemoteAddr)

	done := make(chan struct{})
	defer close(done)
	go sess.keepAlive(done, log)

	that.readLoop(r.Context(), sess)
}

// Close drops every open connection. Stored games are kept until they expire.
func (that *Server) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	for sess := range that.sessions {
		_ = sess.conn.Close()
	}
}

func (that *Server) register(sess *session) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	that.sessions[sess] = struct{}{}

	return true
}

func (that *Server) unregister(sess *session) {
	that.mu.Lock()
	delete(that.sessions, sess)
	that.mu.Unlock()

	_ = sess.conn.Close()
}

func (that *Server) readLoop(ctx context.Context, sess *session) {
	log := that.logger.With("method", "readLoop")

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			that.sendErrorResponse(sess, actionError, "malformed message")
			continue
		}

		that.dispatch(ctx, sess, &message)
	}
}

func (that *Server) dispatch(ctx context.Context, sess *session, message *Message) {
	log := that.logger.With("method", "dispatch", "action", message.Action)

	ctx, span := tracer.Start(ctx, "websocket.dispatch", trace.WithAttributes(
		attribute.String("ws.action", message.Action),
	))
	defer span.End()

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Debug("unknown action")
		that.sendErrorResponse(sess, message.Action, apperror.ErrUnknownAction.Error())
		return
	}

	if err := handler(ctx, sess, message); err != nil {
		span.RecordError(err)
		log.Error("error processing message", "error", err)
	}
}

type session struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	// gameID is only touched by the read loop goroutine.
	gameID string
}

func newSession(conn *websocket.Conn) *session {
	return &session{conn: conn}
}

func (that *session) write(messageType int, data []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return that.conn.WriteMessage(messageType, data)
}

func (that *session) keepAlive(done <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := that.write(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}
