package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatService "github.com/zhouzirui/medassist/backend/internal/service/chat"
	tokenstream "github.com/zhouzirui/medassist/backend/internal/stream"
	"github.com/zhouzirui/medassist/backend/pkg/utils"
)

// Handler manages streaming answers via Server-Sent Events
type Handler struct {
	responder Responder
	chatSvc   *chatService.Service
}

// New creates a new stream handler
func New(responder Responder, chatSvc *chatService.Service) *Handler {
	return &Handler{
		responder: responder,
		chatSvc:   chatSvc,
	}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{chatID}", h.handleStream)
}

// StreamResponse represents a streaming response event
type StreamResponse struct {
	ChatID    string        `json:"chatId"`
	MessageID string        `json:"messageId,omitempty"`
	Content   string        `json:"content,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	userMessage := r.URL.Query().Get("message")
	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, chatID, userMessage); err != nil {
		switch {
		case errors.Is(err, chatService.ErrChatNotFound):
			utils.RespondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, utils.ErrStreamingUnsupported):
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("[stream] error handling request: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
		}
	}
}

// HandleStreamRequest answers userMessage in chat chatID as an SSE stream:
// start, one delta per chunk, then message and end. Errors are only returned
// while nothing has been written yet.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, chatID, userMessage string) error {
	if _, ok := w.(http.Flusher); !ok {
		return utils.ErrStreamingUnsupported
	}

	t, err := beginTurn(ctx, h.chatSvc, chatID, userMessage)
	if err != nil {
		return fmt.Errorf("failed to begin turn: %w", err)
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		return err
	}

	log.Printf("[stream] answering chat=%s message=%s", chatID, t.assistant.ID)

	if err := sse.Event("start", StreamResponse{ChatID: chatID, MessageID: t.assistant.ID}); err != nil {
		h.abandon(ctx, t, err)
		return nil
	}

	answer := h.responder.Respond(ctx, chatID, userMessage)
	err = tokenstream.Consume(answer, func(chunk chat.StreamChunk) error {
		if !chunk.Done {
			t.apply(chunk)
			return sse.Event("delta", StreamResponse{ChatID: chatID, MessageID: t.assistant.ID, Content: chunk.Content})
		}

		msg, err := t.finalize(ctx, chunk.Sources)
		if err != nil {
			log.Printf("[stream] failed to store answer chat=%s: %v", chatID, err)
		}
		if err := sse.Event("message", StreamResponse{ChatID: chatID, MessageID: msg.ID, Message: &msg}); err != nil {
			return err
		}
		return sse.Event("end", StreamResponse{ChatID: chatID, MessageID: msg.ID, Finished: true})
	})
	if err != nil {
		h.abandon(ctx, t, err)
		if ctx.Err() == nil {
			_ = sse.Event("error", StreamResponse{ChatID: chatID, MessageID: t.assistant.ID, Error: "streaming interrupted"})
		}
		return nil
	}

	log.Printf("[stream] completed chat=%s message=%s tokens=%d", chatID, t.assistant.ID, t.tokens)
	return nil
}

// abandon keeps whatever was received before the stream stopped.
func (h *Handler) abandon(ctx context.Context, t *turn, cause error) {
	log.Printf("[stream] stream stopped chat=%s message=%s: %v", t.chatID, t.assistant.ID, cause)
	if _, err := t.finalize(ctx, nil); err != nil {
		log.Printf("[stream] failed to store partial answer chat=%s: %v", t.chatID, err)
	}
}
