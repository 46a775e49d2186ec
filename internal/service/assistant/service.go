package assistant

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/zhouzirui/medassist/backend/internal/service/simulator"
	"github.com/zhouzirui/medassist/backend/internal/stream"
)

// Service picks between the configured backend and the local simulator for
// each query. Respond never fails; every backend failure degrades to the
// simulator's answer.
type Service struct {
	backend   Backend
	simulator *simulator.Simulator
	streamer  *stream.Streamer
	name      string
}

// Option configures a Service.
type Option func(*Service)

// WithBackendName sets the name reported by BackendName.
func WithBackendName(name string) Option {
	return func(s *Service) {
		s.name = name
	}
}

// New builds a selector. A nil backend always uses sim.
func New(backend Backend, sim *simulator.Simulator, streamer *stream.Streamer, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		simulator: sim,
		streamer:  streamer,
		name:      "none",
	}
	if backend != nil {
		s.name = "remote"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BackendName reports which backend answers queries.
func (s *Service) BackendName() string {
	return s.name
}

// Respond streams the answer to query. conversationID is used for logging
// only.
func (s *Service) Respond(ctx context.Context, conversationID, query string) *stream.Stream {
	if s.backend == nil {
		return s.simulator.Stream(ctx, query)
	}

	return s.streamer.Go(ctx, func(ctx context.Context, e *stream.Emitter) error {
		answer, err := s.backend.Answer(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logFallback(conversationID, err)
			return s.simulator.Produce(ctx, e, query)
		}

		if strings.TrimSpace(answer.Text) == "" {
			log.Printf("[assistant] blank answer, conversation=%s sources=%d", conversationID, len(answer.Sources))
			return e.Finish(answer.Sources)
		}
		return e.Tokens(ctx, answer.Text, answer.Sources)
	})
}

func logFallback(conversationID string, err error) {
	var (
		connErr   *ConnectivityError
		statusErr *StatusError
		decodeErr *DecodeError
	)
	switch {
	case errors.As(err, &connErr):
		log.Printf("[assistant] backend unreachable, using simulator: conversation=%s err=%v", conversationID, connErr.Err)
	case errors.As(err, &statusErr):
		log.Printf("[assistant] backend status %d, using simulator: conversation=%s body=%q", statusErr.Code, conversationID, statusErr.Body)
	case errors.As(err, &decodeErr):
		log.Printf("[assistant] backend sent malformed JSON, using simulator: conversation=%s err=%v", conversationID, decodeErr.Err)
	default:
		log.Printf("[assistant] backend failed, using simulator: conversation=%s err=%v", conversationID, err)
	}
}
