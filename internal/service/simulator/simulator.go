package simulator

import (
	"context"
	"time"

	"github.com/zhouzirui/medassist/backend/internal/stream"
)

// DefaultThinkingDelay is the pause before the first simulated token.
const DefaultThinkingDelay = 300 * time.Millisecond

// Simulator answers queries from a static catalog without touching the
// network. It cannot fail other than by cancellation.
type Simulator struct {
	catalog  *Catalog
	streamer *stream.Streamer
	thinking time.Duration
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithCatalog replaces the embedded catalog.
func WithCatalog(c *Catalog) Option {
	return func(s *Simulator) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithThinkingDelay overrides DefaultThinkingDelay. Negative values are
// treated as zero.
func WithThinkingDelay(d time.Duration) Option {
	return func(s *Simulator) {
		if d < 0 {
			d = 0
		}
		s.thinking = d
	}
}

// New creates a simulator that paces its output with streamer.
func New(streamer *stream.Streamer, opts ...Option) *Simulator {
	s := &Simulator{
		streamer: streamer,
		thinking: DefaultThinkingDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = DefaultCatalog()
	}
	return s
}

// Select returns the canned entry for query.
func (s *Simulator) Select(query string) Entry {
	return s.catalog.Match(query)
}

// Stream answers query as a paced chunk stream.
func (s *Simulator) Stream(ctx context.Context, query string) *stream.Stream {
	return s.streamer.Go(ctx, func(ctx context.Context, e *stream.Emitter) error {
		return s.Produce(ctx, e, query)
	})
}

// Produce writes the simulated answer for query into e. It lets another
// producer hand over to the simulator mid-stream.
func (s *Simulator) Produce(ctx context.Context, e *stream.Emitter, query string) error {
	entry := s.Select(query)
	if err := e.Pause(ctx, s.thinking); err != nil {
		return err
	}
	return e.Tokens(ctx, entry.Answer, entry.Sources)
}
