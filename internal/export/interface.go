// Package export renders finalized chat transcripts for download.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

// Exporter renders a chat in one format.
type Exporter interface {
	Export(c chat.Chat, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter picks an exporter by format name.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "txt", "text":
		return &TextExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: txt, md, yaml)", format)
	}
}

// exportable drops messages that are still streaming or have no content.
func exportable(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if !m.Finalized() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func speaker(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return "You"
	case chat.RoleAssistant:
		return "MedAssist"
	default:
		return "System"
	}
}
