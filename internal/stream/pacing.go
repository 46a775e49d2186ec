package stream

import (
	"math/rand"
	"strings"
	"time"
)

// Pacer decides how long to pause before a token is emitted.
type Pacer interface {
	Delay(token string) time.Duration
}

// Random is the source of jitter used by Policy. *rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// Delay windows, lower bound inclusive and upper bound exclusive.
var (
	SentenceDelay = Window{Min: 80 * time.Millisecond, Max: 120 * time.Millisecond}
	ClauseDelay   = Window{Min: 50 * time.Millisecond, Max: 80 * time.Millisecond}
	WordDelay     = Window{Min: 15 * time.Millisecond, Max: 40 * time.Millisecond}
	HeadingDelay  = 60 * time.Millisecond
)

// Window is a half-open duration range [Min, Max).
type Window struct {
	Min time.Duration
	Max time.Duration
}

func (w Window) sample(r Random) time.Duration {
	span := float64(w.Max - w.Min)
	d := w.Min + time.Duration(r.Float64()*span)
	if d >= w.Max {
		// Float64 is [0,1) but rounding on tiny spans can still land on Max.
		d = w.Max - 1
	}
	return d
}

// Policy models human typing cadence: longer pauses after sentence and clause
// punctuation, a fixed pause before markdown headings, short jitter otherwise.
type Policy struct {
	rnd Random
}

// NewPolicy returns a Policy drawing jitter from rnd. A nil rnd uses the
// process-wide math/rand/v2 source.
func NewPolicy(rnd Random) *Policy {
	if rnd == nil {
		rnd = globalRandom{}
	}
	return &Policy{rnd: rnd}
}

// Delay implements Pacer. The separator re-attached by Tokenize is ignored.
func (p *Policy) Delay(token string) time.Duration {
	token = strings.TrimSuffix(token, " ")
	switch {
	case strings.HasSuffix(token, ".") || strings.HasSuffix(token, "!") || strings.HasSuffix(token, "?"):
		return SentenceDelay.sample(p.rnd)
	case strings.HasSuffix(token, ",") || strings.HasSuffix(token, ":"):
		return ClauseDelay.sample(p.rnd)
	case strings.HasPrefix(token, "#"):
		return HeadingDelay
	default:
		return WordDelay.sample(p.rnd)
	}
}

type instant struct{}

func (instant) Delay(string) time.Duration { return 0 }

// Instant never pauses.
var Instant Pacer = instant{}

// Tokenize splits answer on single spaces and re-attaches the separator to
// every token but the last, so the tokens concatenate back to answer. An empty
// final fragment (answer ending in a space, or an empty answer) is dropped.
func Tokenize(answer string) []string {
	words := strings.Split(answer, " ")
	tokens := make([]string, 0, len(words))
	for i, word := range words {
		if i < len(words)-1 {
			tokens = append(tokens, word+" ")
			continue
		}
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
