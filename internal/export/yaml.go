package export

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

type yamlTranscript struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	CreatedAt time.Time     `yaml:"created_at"`
	Messages  []yamlMessage `yaml:"messages"`
}

type yamlMessage struct {
	Role       chat.Role     `yaml:"role"`
	Timestamp  time.Time     `yaml:"timestamp"`
	Content    string        `yaml:"content"`
	Confidence string        `yaml:"confidence,omitempty"`
	Sources    []chat.Source `yaml:"sources,omitempty"`
}

// YAMLExporter writes the transcript as a YAML document.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(c chat.Chat, w io.Writer) error {
	doc := yamlTranscript{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt.UTC()}
	for _, m := range exportable(c.Messages) {
		doc.Messages = append(doc.Messages, yamlMessage{
			Role:       m.Role,
			Timestamp:  m.CreatedAt.UTC(),
			Content:    m.Content,
			Confidence: string(m.Confidence),
			Sources:    m.Sources,
		})
	}

	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(doc)
}

func (e *YAMLExporter) Extension() string { return "yaml" }

func (e *YAMLExporter) ContentType() string { return "application/yaml" }
