package chat

// SourceCategory tags where a reference comes from.
type SourceCategory string

const (
	CategoryJournal   SourceCategory = "journal"
	CategoryGuideline SourceCategory = "guideline"
	CategoryReference SourceCategory = "reference"
	CategoryDatabase  SourceCategory = "database"
)

// Source is a citation attached to an assistant answer. It only arrives on the
// terminal chunk of a stream and is not modified afterwards.
type Source struct {
	ID      string         `json:"id" yaml:"id"`
	Title   string         `json:"title" yaml:"title"`
	Snippet string         `json:"snippet" yaml:"snippet"`
	URL     string         `json:"url" yaml:"url"`
	Score   float64        `json:"score" yaml:"score"`
	Type    SourceCategory `json:"type" yaml:"type"`
}
