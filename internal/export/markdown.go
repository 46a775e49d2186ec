package export

import (
	"fmt"
	"io"
	"time"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// MarkdownExporter writes a Markdown transcript. Message content is already
// Markdown and is written as is.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(c chat.Chat, w io.Writer) error {
	messages := exportable(c.Messages)

	_, _ = fmt.Fprintf(w, "# %s\n\n", c.Title)
	_, _ = fmt.Fprintf(w, "**Created:** %s  \n", c.CreatedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, m := range messages {
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n", speaker(m.Role), m.CreatedAt.UTC().Format(time.RFC3339), m.Content)

		if m.Confidence != "" {
			_, _ = fmt.Fprintf(w, "_Confidence: %s_\n\n", m.Confidence)
		}
		if len(m.Sources) > 0 {
			_, _ = fmt.Fprintf(w, "Sources:\n\n")
			for _, src := range m.Sources {
				if src.URL != "" {
					_, _ = fmt.Fprintf(w, "- [%s](%s) (%s, %.2f)\n", src.Title, src.URL, src.Type, src.Score)
				} else {
					_, _ = fmt.Fprintf(w, "- %s (%s, %.2f)\n", src.Title, src.Type, src.Score)
				}
			}
			_, _ = fmt.Fprintf(w, "\n")
		}

		if i < len(messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }

func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
