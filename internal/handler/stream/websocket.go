package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatService "github.com/zhouzirui/medassist/backend/internal/service/chat"
	tokenstream "github.com/zhouzirui/medassist/backend/internal/stream"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketHandler streams answers over a WebSocket, one query at a time per
// connection.
type WebSocketHandler struct {
	responder Responder
	chatSvc   *chatService.Service
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(responder Responder, chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		responder: responder,
		chatSvc:   chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{chatID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type   string          `json:"type"`
	ChatID string          `json:"chatId"`
	Data   json.RawMessage `json:"data"`
}

// QueryMessage asks a question.
type QueryMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	ChatID    string `json:"chatId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType, chatID string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		ChatID:    chatID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *wsConn) sendError(chatID, message string) {
	if err := c.send("error", chatID, map[string]string{"message": message}); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if _, err := h.chatSvc.GetChat(r.Context(), chatID); err != nil {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	log.Printf("[websocket] new connection for chat: %s", chatID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, raw)

	if err := conn.send("connected", chatID, nil); err != nil {
		return
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inFlight context.CancelFunc
	)
	defer wg.Wait()
	defer func() {
		mu.Lock()
		if inFlight != nil {
			inFlight()
		}
		mu.Unlock()
	}()

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(pongWait))

		if msg.ChatID != "" && msg.ChatID != chatID {
			conn.sendError(chatID, "chat mismatch")
			continue
		}

		switch msg.Type {
		case "query":
			var q QueryMessage
			if err := json.Unmarshal(msg.Data, &q); err != nil || strings.TrimSpace(q.Text) == "" {
				conn.sendError(chatID, "query text is required")
				continue
			}

			mu.Lock()
			busy := inFlight != nil
			var turnCtx context.Context
			if !busy {
				turnCtx, inFlight = context.WithCancel(ctx)
			}
			mu.Unlock()
			if busy {
				conn.sendError(chatID, "an answer is already streaming")
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				h.answer(turnCtx, conn, chatID, q.Text)

				mu.Lock()
				inFlight()
				inFlight = nil
				mu.Unlock()
			}()

		case "cancel":
			mu.Lock()
			if inFlight != nil {
				inFlight()
			}
			mu.Unlock()

		default:
			conn.sendError(chatID, "unknown message type: "+msg.Type)
		}
	}
}

// answer streams one reply over conn.
func (h *WebSocketHandler) answer(ctx context.Context, conn *wsConn, chatID, text string) {
	t, err := beginTurn(ctx, h.chatSvc, chatID, text)
	if err != nil {
		if errors.Is(err, chatService.ErrChatNotFound) {
			conn.sendError(chatID, "chat not found")
			return
		}
		log.Printf("[websocket] failed to begin turn chat=%s: %v", chatID, err)
		conn.sendError(chatID, "failed to store message")
		return
	}

	if err := conn.send("start", chatID, map[string]string{"messageId": t.assistant.ID, "userMessageId": t.user.ID}); err != nil {
		h.abandon(ctx, t, err)
		return
	}

	err = tokenstream.Consume(h.responder.Respond(ctx, chatID, text), func(chunk chat.StreamChunk) error {
		if !chunk.Done {
			t.apply(chunk)
			return conn.send("delta", chatID, map[string]string{"messageId": t.assistant.ID, "content": chunk.Content})
		}

		msg, err := t.finalize(ctx, chunk.Sources)
		if err != nil {
			log.Printf("[websocket] failed to store answer chat=%s: %v", chatID, err)
		}
		return conn.send("message", chatID, msg)
	})
	if err != nil {
		h.abandon(ctx, t, err)
		if errors.Is(err, context.Canceled) {
			_ = conn.send("cancelled", chatID, map[string]string{"messageId": t.assistant.ID})
		}
	}
}

func (h *WebSocketHandler) abandon(ctx context.Context, t *turn, cause error) {
	log.Printf("[websocket] stream stopped chat=%s message=%s: %v", t.chatID, t.assistant.ID, cause)
	if _, err := t.finalize(ctx, nil); err != nil {
		log.Printf("[websocket] failed to store partial answer chat=%s: %v", t.chatID, err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
