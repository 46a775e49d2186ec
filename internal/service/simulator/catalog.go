package simulator

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Entry is one canned answer with its citations.
type Entry struct {
	Name    string        `yaml:"name"`
	Answer  string        `yaml:"answer"`
	Sources []chat.Source `yaml:"sources"`
}

// Rule selects an Entry when any keyword occurs in the query.
type Rule struct {
	Entry    `yaml:",inline"`
	Keywords []string `yaml:"keywords"`
}

// Catalog is an ordered keyword table with a fallback entry.
type Catalog struct {
	Rules   []Rule `yaml:"rules"`
	Default Entry  `yaml:"default"`
}

// ErrEmptyDefault is returned for catalogs without a default answer.
var ErrEmptyDefault = errors.New("catalog default answer is empty")

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded simulator catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and normalizes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Default.Answer) == "" {
		return nil, ErrEmptyDefault
	}

	for i := range c.Rules {
		keywords := make([]string, 0, len(c.Rules[i].Keywords))
		for _, kw := range c.Rules[i].Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		c.Rules[i].Keywords = keywords
	}
	return &c, nil
}

// Match returns the entry of the first rule with a keyword contained in query,
// ignoring case, or the default entry.
func (c *Catalog) Match(query string) Entry {
	normalized := strings.ToLower(query)
	for _, rule := range c.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				return rule.Entry.clone()
			}
		}
	}
	return c.Default.clone()
}

func (e Entry) clone() Entry {
	e.Sources = append([]chat.Source{}, e.Sources...)
	return e
}
