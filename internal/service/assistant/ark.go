package assistant

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

const arkSystemPrompt = `You are MedAssist, a careful medical information assistant.
Answer in plain language and keep the reply short.
Suggest seeing a clinician when symptoms are severe, sudden or persistent.
Never present the answer as a diagnosis.`

// ArkBackend answers through a chat model instead of the retrieval service.
// It never cites sources.
type ArkBackend struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBackend compiles the prompt chain around chatModel.
func NewArkBackend(ctx context.Context, chatModel model.BaseChatModel) (*ArkBackend, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(arkSystemPrompt),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkBackend{chain: runnable}, nil
}

// Answer runs the chain once for query.
func (b *ArkBackend) Answer(ctx context.Context, query string) (*Answer, error) {
	resp, err := b.chain.Invoke(ctx, map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}

	log.Printf("[assistant] ark answered, length=%d", len(resp.Content))
	return &Answer{Text: resp.Content, Sources: []chat.Source{}}, nil
}
