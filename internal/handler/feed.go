package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"telemetry-broker/internal/hub"
	"telemetry-broker/internal/ingest"
)

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// FeedHandler streams admission events over a websocket.
type FeedHandler struct {
	Hub     *hub.Hub
	Sources ingest.SourceLookup
	Logger  *zap.Logger
}

type feedMessage struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	// Peers are already restricted to private addresses.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes; the hub's writer goroutine and the pong
// replies of the read loop share the connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

// Serve upgrades the request and subscribes it to one source (?source=)
// or to every source when the parameter is absent.
func (h *FeedHandler) Serve(c *gin.Context) {
	sourceID := c.Query("source")
	if sourceID != hub.AllSources {
		_, ok, err := h.Sources.GetSource(c.Request.Context(), sourceID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Source with ID %s does not registered.", sourceID)})
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{SourceID: sourceID, Writer: writer}
	h.Hub.Register(conn)
	h.logger().Info("feed subscriber connected",
		zap.String("peer", c.Request.RemoteAddr),
		zap.String("source_id", sourceID),
	)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
		h.logger().Info("feed subscriber disconnected", zap.String("peer", c.Request.RemoteAddr))
	}()

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			out, _ := json.Marshal(feedMessage{Type: "pong"})
			_ = writer.Write(out)
		}
	}
}

func (h *FeedHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
