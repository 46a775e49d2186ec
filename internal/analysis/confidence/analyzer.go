package confidence

import (
	"strings"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// Score thresholds on the best-matching source.
const (
	HighScore   = 0.85
	MediumScore = 0.6
)

// Decision is the assessed confidence together with what drove it.
type Decision struct {
	Level     chat.Confidence
	BestScore float64
	Curated   bool
	Hedged    bool
}

// hedges mark an answer the backend itself is unsure about.
var hedges = []string{
	"not sure",
	"unclear",
	"cannot determine",
	"can't determine",
	"insufficient information",
	"not enough information",
	"i don't know",
}

// Assess grades an answer by the sources backing it. Without sources the
// level is left unset.
func Assess(answer string, sources []chat.Source) Decision {
	if len(sources) == 0 {
		return Decision{}
	}

	d := Decision{}
	for _, src := range sources {
		if src.Score > d.BestScore {
			d.BestScore = src.Score
		}
		if src.Type == chat.CategoryGuideline || src.Type == chat.CategoryJournal {
			d.Curated = true
		}
	}

	switch {
	case d.BestScore >= HighScore:
		d.Level = chat.ConfidenceHigh
	case d.BestScore >= MediumScore:
		d.Level = chat.ConfidenceMedium
	default:
		d.Level = chat.ConfidenceLow
	}

	// 指南或期刊来源至少给到 medium。
	if d.Level == chat.ConfidenceLow && d.Curated {
		d.Level = chat.ConfidenceMedium
	}

	if isHedged(answer) {
		d.Hedged = true
		d.Level = lower(d.Level)
	}

	return d
}

func isHedged(answer string) bool {
	normalized := strings.ToLower(answer)
	for _, phrase := range hedges {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func lower(level chat.Confidence) chat.Confidence {
	switch level {
	case chat.ConfidenceHigh:
		return chat.ConfidenceMedium
	default:
		return chat.ConfidenceLow
	}
}
