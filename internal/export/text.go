package export

import (
	"fmt"
	"io"
	"time"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// TextExporter writes a plain-text transcript.
type TextExporter struct{}

func (e *TextExporter) Export(c chat.Chat, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\nExported %s\n\n", c.Title, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	for _, m := range exportable(c.Messages) {
		if _, err := fmt.Fprintf(w, "[%s] %s:\n%s\n", m.CreatedAt.UTC().Format(time.RFC3339), speaker(m.Role), m.Content); err != nil {
			return err
		}
		for i, src := range m.Sources {
			if _, err := fmt.Fprintf(w, "  [%d] %s %s\n", i+1, src.Title, src.URL); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (e *TextExporter) Extension() string { return "txt" }

func (e *TextExporter) ContentType() string { return "text/plain; charset=utf-8" }
