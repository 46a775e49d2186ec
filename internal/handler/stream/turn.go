package stream

import (
	"context"
	"strings"
	"time"

	"github.com/zhouzirui/medassist/backend/internal/analysis/confidence"
	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatService "github.com/zhouzirui/medassist/backend/internal/service/chat"
	tokenstream "github.com/zhouzirui/medassist/backend/internal/stream"
)

// Responder produces the answer stream for one query.
type Responder interface {
	Respond(ctx context.Context, conversationID, query string) *tokenstream.Stream
}

// turn is one question and its streamed answer. The assistant message is
// stored as soon as the turn begins and written back once it is finalized.
type turn struct {
	chatSvc   *chatService.Service
	chatID    string
	user      chat.Message
	assistant chat.Message
	content   strings.Builder
	tokens    int
	started   time.Time
	finalized bool
}

func beginTurn(ctx context.Context, chatSvc *chatService.Service, chatID, text string) (*turn, error) {
	user, err := chatSvc.AppendMessage(ctx, chatID, chat.Message{Role: chat.RoleUser, Content: text})
	if err != nil {
		return nil, err
	}

	assistant, err := chatSvc.AppendMessage(ctx, chatID, chat.Message{
		Role:        chat.RoleAssistant,
		IsStreaming: true,
	})
	if err != nil {
		return nil, err
	}

	return &turn{
		chatSvc:   chatSvc,
		chatID:    chatID,
		user:      user,
		assistant: assistant,
		started:   time.Now(),
	}, nil
}

// apply appends a content chunk to the running answer.
func (t *turn) apply(chunk chat.StreamChunk) {
	t.content.WriteString(chunk.Content)
	t.tokens++
}

// finalize freezes the answer and stores it. It runs at most once; a
// partial answer from an abandoned stream is kept as is, without sources.
func (t *turn) finalize(ctx context.Context, sources []chat.Source) (chat.Message, error) {
	if t.finalized {
		return t.assistant, nil
	}
	t.finalized = true

	content := t.content.String()
	t.assistant.Content = content
	t.assistant.IsStreaming = false
	t.assistant.Sources = sources
	t.assistant.Confidence = confidence.Assess(content, sources).Level
	t.assistant.Metadata = &chat.Metadata{
		TokenCount: t.tokens,
		LatencyMS:  time.Since(t.started).Milliseconds(),
	}

	// The client may already be gone; the answer is stored regardless.
	err := t.chatSvc.UpdateMessage(context.WithoutCancel(ctx), t.chatID, t.assistant)
	return t.assistant, err
}
