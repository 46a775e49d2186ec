package assistant

import (
	"context"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// Backend answers a single query. Any returned error makes the caller fall
// back to the local simulator.
type Backend interface {
	Answer(ctx context.Context, query string) (*Answer, error)
}

// Answer is a normalized backend response.
type Answer struct {
	Text    string
	Sources []chat.Source
}
