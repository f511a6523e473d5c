package ws

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// writePump owns all writes to the connection. It exits when the send queue
// is closed or a write fails.
func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client_id", cl.id), zap.Error(err))
				h.unregister(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(cl)
				return
			}
		}
	}
}

// readPump handles client requests until the connection fails.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.String("client_id", cl.id), zap.Error(err))
			}
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.reply(cl, Message{Type: TypeError, Error: "invalid message"})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case TypePing:
			h.reply(cl, Message{Type: TypePong})
		case TypeSnapshot:
			h.reply(cl, snapshotMessage(h.index.Current()))
		default:
			h.reply(cl, Message{Type: TypeError, Error: "unknown message type: " + msg.Type})
		}
	}
}

// reply queues a message for one client without blocking.
func (h *Hub) reply(cl *client, msg Message) {
	data, err := encode(msg)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[cl.id]; !ok || cur != cl {
		return
	}
	select {
	case cl.send <- data:
		h.metrics.RecordWSMessage("out", msg.Type)
	default:
		h.dropLocked(cl.id, cl)
	}
}
