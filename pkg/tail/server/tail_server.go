package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	tailService "github.com/tailspan/tailspan/pkg/tail/service"
	"go.uber.org/zap"
)

// TailServerImpl accepts WebSocket connections from the host runtime. Each
// connection carries the ordered event stream of exactly one invocation, one
// JSON-encoded event per message, starting with onset and ending after
// outcome. A fresh session is created per connection.
type TailServerImpl struct {
	upgrader   websocket.Upgrader
	newSession tailService.SessionFactory
	logger     *zap.Logger
}

func NewTailServerImpl(newSession tailService.SessionFactory, logger *zap.Logger) *TailServerImpl {
	return &TailServerImpl{
		upgrader:   websocket.Upgrader{},
		newSession: newSession,
		logger:     logger,
	}
}

func (s *TailServerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade tail connection", zap.Error(err))
		return
	}
	defer conn.Close()

	session := s.newSession()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Tail connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		var event tailModel.Event
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Warn("Skipping undecodable tail event", zap.Error(err))
			continue
		}
		session.Dispatch(r.Context(), event)
		if session.Finished() {
			return
		}
	}
}
