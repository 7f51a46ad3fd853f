package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/agridoc/agridoc/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type scanRequest struct {
	Image string `json:"image" binding:"required"`
}

type historyResponse struct {
	Items []models.HistoryItem `json:"items"`
	Total int                  `json:"total"`
}

// session is one websocket connection. Writes are serialized because scan results are
// delivered from a separate goroutine.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
	busy    atomic.Bool
	scans   sync.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.cancel()
		sess.conn.Close()
	})
}

func (sess *session) send(messageType string, data any) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	msg := map[string]any{"type": messageType}
	if data != nil {
		msg["data"] = data
	}
	if err := sess.conn.WriteJSON(msg); err != nil {
		sess.logger.Warn("Error sending message", zap.String("type", messageType), zap.Error(err))
		return
	}
	sess.logger.Debug("Message sent", zap.String("type", messageType))
}

func (sess *session) sendError(message string) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	msg := map[string]any{
		"type":    "error",
		"message": message,
	}
	if err := sess.conn.WriteJSON(msg); err != nil {
		sess.logger.Warn("Error sending error message", zap.Error(err))
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.New().String(),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
	sess.logger = s.logger.With(zap.String("session", sess.id))

	s.clients.Store(sess.id, sess)
	sess.logger.Info("Client connected", zap.String("remote", c.Request.RemoteAddr))
	defer func() {
		sess.close()
		sess.scans.Wait()
		s.clients.Delete(sess.id)
		sess.logger.Info("Client disconnected")
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn("Error reading message", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			sess.sendError(msgInvalidMessage)
			continue
		}
		s.handleWebSocketMessage(sess, msg)
	}
}

func (s *Server) handleWebSocketMessage(sess *session, msg wsMessage) {
	switch msg.Type {
	case "scan":
		s.handleScan(sess, msg.Data)
	case "get_history":
		items, err := s.history.List(sess.ctx)
		if err != nil {
			sess.logger.Error("Failed to load history", zap.Error(err))
			sess.sendError(msgHistory)
			return
		}
		sess.send("history", historyResponse{Items: items, Total: len(items)})
	case "clear_history":
		if err := s.history.Clear(sess.ctx); err != nil {
			sess.logger.Error("Failed to clear history", zap.Error(err))
			sess.sendError(msgSave)
			return
		}
		sess.send("history_cleared", nil)
	default:
		sess.sendError(msgUnknownType)
	}
}

// handleScan runs the diagnosis off the read loop so the connection can still be closed
// while the backend is working.
func (s *Server) handleScan(sess *session, data json.RawMessage) {
	var req scanRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			sess.sendError(msgInvalidMessage)
			return
		}
	}
	if req.Image == "" {
		sess.sendError(msgInvalidImage)
		return
	}

	if !sess.busy.CompareAndSwap(false, true) {
		sess.sendError(msgScanInProgress)
		return
	}

	sess.scans.Add(1)
	go func() {
		defer sess.scans.Done()

		result, err := s.runScan(sess.ctx, req.Image)
		// Cleared before replying so the client may scan again as soon as it sees the answer
		sess.busy.Store(false)
		if errors.Is(err, errAbandoned) {
			return
		}
		if err != nil {
			sess.logger.Warn("Scan failed", zap.Error(err))
			sess.sendError(userMessage(err))
			return
		}
		sess.send("scan_result", result)
	}()
}
