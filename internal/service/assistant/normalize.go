package assistant

import (
	"math"
	"strconv"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// Field names checked, in priority order, when reading a backend reply.
var (
	AnswerFields = []string{"text", "advice", "response", "answer"}
	SourceFields = []string{"sources", "sources_used", "retrieved_docs"}
)

// Normalize extracts the answer text and sources from a decoded reply.
func Normalize(fields map[string]any) *Answer {
	return &Answer{
		Text:    FirstString(fields, AnswerFields),
		Sources: FirstSources(fields, SourceFields),
	}
}

// FirstString returns the first non-empty string among keys, or "".
func FirstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// FirstSources returns the first non-empty list among keys decoded into
// sources. Elements that are not objects are skipped. The result is never nil.
func FirstSources(fields map[string]any, keys []string) []chat.Source {
	for _, key := range keys {
		list, ok := fields[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}

		sources := make([]chat.Source, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sources = append(sources, decodeSource(obj))
		}
		return sources
	}
	return []chat.Source{}
}

func decodeSource(obj map[string]any) chat.Source {
	src := chat.Source{
		ID:      stringField(obj["id"]),
		Title:   stringField(obj["title"]),
		Snippet: stringField(obj["snippet"]),
		URL:     stringField(obj["url"]),
		Type:    chat.SourceCategory(stringField(obj["type"])),
	}
	switch score := obj["score"].(type) {
	case float64:
		src.Score = clampScore(score)
	case string:
		if f, err := strconv.ParseFloat(score, 64); err == nil {
			src.Score = clampScore(f)
		}
	}
	return src
}

// clampScore keeps relevance within [0, 1]. NaN counts as no relevance.
func clampScore(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
