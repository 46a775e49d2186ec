package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

var (
	// ErrClosed is returned to a producer once the consumer has gone away.
	ErrClosed = errors.New("stream closed by consumer")
	// ErrUnterminated means the producer stopped without a terminal chunk.
	ErrUnterminated = errors.New("stream ended without terminal chunk")
)

// Stream is a one-shot, forward-only sequence of chunks. It is not safe to
// Recv from more than one goroutine.
type Stream struct {
	reader *schema.StreamReader[chat.StreamChunk]
	cancel context.CancelFunc
	once   sync.Once
}

// Recv blocks until the next chunk is produced. It returns io.EOF after the
// terminal chunk, or the producer's error (usually a context error).
func (s *Stream) Recv() (chat.StreamChunk, error) {
	return s.reader.Recv()
}

// Close abandons the stream. Any pause in progress is cut short and the
// producer goroutine exits. Safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.cancel()
		s.reader.Close()
	})
}

// ProduceFunc writes a stream through the emitter. Returning a non-nil error
// other than ErrClosed delivers it to the consumer.
type ProduceFunc func(ctx context.Context, e *Emitter) error

// Streamer turns answers into paced chunk streams.
type Streamer struct {
	pacer Pacer
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithPacer overrides the default Policy.
func WithPacer(p Pacer) Option {
	return func(s *Streamer) {
		if p != nil {
			s.pacer = p
		}
	}
}

// NewStreamer builds a Streamer using the default typing Policy unless
// overridden.
func NewStreamer(opts ...Option) *Streamer {
	s := &Streamer{pacer: NewPolicy(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream emits answer token by token followed by a terminal chunk carrying
// sources.
func (s *Streamer) Stream(ctx context.Context, answer string, sources []chat.Source) *Stream {
	return s.Go(ctx, func(ctx context.Context, e *Emitter) error {
		return e.Tokens(ctx, answer, sources)
	})
}

// Go runs produce on its own goroutine and returns the consuming end. The
// pipe is unbuffered so the producer only advances as fast as it is read.
func (s *Streamer) Go(ctx context.Context, produce ProduceFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	reader, writer := schema.Pipe[chat.StreamChunk](0)
	e := &Emitter{writer: writer, pacer: s.pacer}

	go func() {
		defer cancel()
		defer writer.Close()

		err := produce(ctx, e)
		if err != nil && !errors.Is(err, ErrClosed) {
			writer.Send(chat.StreamChunk{}, err)
		}
	}()

	return &Stream{reader: reader, cancel: cancel}
}

// Emitter is the producing end handed to a ProduceFunc.
type Emitter struct {
	writer *schema.StreamWriter[chat.StreamChunk]
	pacer  Pacer
	done   bool
}

// Pause suspends the producer for d, returning early with the context error
// if the stream is cancelled. The timer is always released.
func (e *Emitter) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Send delivers one chunk, blocking until the consumer takes it.
func (e *Emitter) Send(chunk chat.StreamChunk) error {
	if e.done {
		return ErrClosed
	}
	if closed := e.writer.Send(chunk, nil); closed {
		return ErrClosed
	}
	if chunk.Done {
		e.done = true
	}
	return nil
}

// Tokens paces answer out word by word and then finishes with sources.
func (e *Emitter) Tokens(ctx context.Context, answer string, sources []chat.Source) error {
	for _, token := range Tokenize(answer) {
		if err := e.Pause(ctx, e.pacer.Delay(token)); err != nil {
			return err
		}
		if err := e.Send(chat.StreamChunk{Content: token}); err != nil {
			return err
		}
	}
	return e.Finish(sources)
}

// Finish sends the terminal chunk.
func (e *Emitter) Finish(sources []chat.Source) error {
	if sources == nil {
		sources = []chat.Source{}
	}
	return e.Send(chat.StreamChunk{Done: true, Sources: sources})
}

// Collect drains s and returns every chunk, closing the stream afterwards.
func Collect(s *Stream) ([]chat.StreamChunk, error) {
	var chunks []chat.StreamChunk
	err := Consume(s, func(chunk chat.StreamChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}

// Consume feeds every chunk of s to apply until the terminal chunk. Errors and
// panics raised by apply stop consumption and close the stream; they never
// reach the producer.
func Consume(s *Stream, apply func(chat.StreamChunk) error) error {
	defer s.Close()

	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return ErrUnterminated
		}
		if err != nil {
			return err
		}

		if err := safeApply(apply, chunk); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}

func safeApply(apply func(chat.StreamChunk) error, chunk chat.StreamChunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SinkError{Cause: r}
		}
	}()
	return apply(chunk)
}

// SinkError wraps a panic raised by a Consume callback.
type SinkError struct {
	Cause any
}

func (e *SinkError) Error() string {
	return "stream sink panicked: " + describe(e.Cause)
}

func describe(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return "non-error panic value"
	}
}
