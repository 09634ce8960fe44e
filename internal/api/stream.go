package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

// The WebView is served from the module's own origin or file://.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// handleFeatureLog streams the patch console over a WebSocket. The first
// text message is the backlog accumulated so far; every later message is a
// chunk appended by the patch flow or the log relay.
func (s *Server) handleFeatureLog(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	backlog, chunks, cancel := s.features.Console().Subscribe()
	defer cancel()

	// Reader: the client never sends data, but reading is required to see
	// close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg string) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return ws.WriteMessage(websocket.TextMessage, []byte(msg)) == nil
	}
	if backlog != "" && !send(backlog) {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok || !send(chunk) {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
