package gateway

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-polls/internal/config"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// Session is one websocket connection bound to one subject.
type Session struct {
	client *hub.Client
	conn   *websocket.Conn
	actor  domain.Actor
	ctx    context.Context
	cfg    config.WebSocketConfig

	// polls this connection joined as a participant; guarded by the
	// gateway mutex
	joined map[string]struct{}
}

func newSession(client *hub.Client, conn *websocket.Conn, actor domain.Actor, cfg config.WebSocketConfig) *Session {
	l := log.L().With().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUserID, actor.UserID).
		Str(log.FieldUsername, actor.Username).
		Logger()

	return &Session{
		client: client,
		conn:   conn,
		actor:  actor,
		ctx:    log.WithLogger(context.Background(), l),
		cfg:    cfg,
		joined: make(map[string]struct{}),
	}
}

// ReadPump reads frames until the connection fails and hands each one to
// handle. onClose runs once the loop exits.
func (s *Session) ReadPump(handle func(*Session, []byte), onClose func(*Session)) {
	defer func() {
		onClose(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := log.Ctx(s.ctx)
				l.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		handle(s, message)
	}
}

// WritePump drains the client's send buffer onto the socket and keeps the
// connection alive with pings. A closed buffer ends the connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.client.Send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
