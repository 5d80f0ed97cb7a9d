package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const echoPrefix = "Echo: "

// wsSubscriber delivers frames over one websocket connection
type wsSubscriber struct {
	id   string
	conn *websocket.Conn
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.NewString(), conn: conn}
}

func (s *wsSubscriber) ID() string {
	return s.id
}

func (s *wsSubscriber) Send(ctx context.Context, frame []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *wsSubscriber) Close() error {
	return s.conn.Close()
}

// WSHandler upgrades inbound connections and registers them with the broadcaster.
// Text received from a client is echoed back to that client only.
type WSHandler struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

func NewWSHandler(b *Broadcaster) *WSHandler {
	return &WSHandler{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	sub := newWSSubscriber(conn)
	if err := h.broadcaster.Register(sub); err != nil {
		log.Warn().Err(err).Msg("Rejecting websocket subscriber")
		_ = conn.Close()
		return
	}
	defer h.broadcaster.Unregister(sub.ID())

	log.Info().Str("subscriberID", sub.ID()).Str("remote", r.RemoteAddr).Msg("Websocket client connected")

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("subscriberID", sub.ID()).Msg("Websocket read failed")
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}

		log.Debug().Str("subscriberID", sub.ID()).Str("message", string(data)).Msg("Websocket message received")
		if err := h.broadcaster.SendTo(sub.ID(), []byte(echoPrefix+string(data))); err != nil {
			break
		}
	}

	log.Info().Str("subscriberID", sub.ID()).Msg("Websocket client disconnected")
}
