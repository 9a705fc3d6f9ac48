// Package artifact parses the two on-disk prompt formats and normalizes
// them into models.PromptArtifact values.
package artifact

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/internal/models"
)

// DocumentFrontmatter holds the typed fields every prompt document declares.
type DocumentFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// Document is a parsed markdown prompt document: YAML frontmatter between
// --- delimiters, followed by a freeform body.
type Document struct {
	Frontmatter    DocumentFrontmatter
	FrontmatterRaw map[string]any
	Body           string
	Path           string
	RawContent     string
}

// ParseDocument parses a frontmatter-delimited markdown document. Content
// that does not begin with --- is not a prompt document; the caller records
// it as skipped.
func ParseDocument(path, content string) (*Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("document is empty")
	}
	if !strings.HasPrefix(content, "---") {
		return nil, errors.New("missing frontmatter delimiter")
	}

	rest := content[3:]
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}

	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, errors.New("closing frontmatter delimiter not found")
	}

	yamlBlock := rest[:idx]
	body := rest[idx+4:]

	var fm DocumentFrontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, fmt.Errorf("unmarshalling frontmatter: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &raw); err != nil {
		return nil, fmt.Errorf("unmarshalling frontmatter: %w", err)
	}

	return &Document{
		Frontmatter:    fm,
		FrontmatterRaw: raw,
		Body:           body,
		Path:           path,
		RawContent:     content,
	}, nil
}

// ToArtifact normalizes the document into the uniform artifact shape.
// Downstream consumers see the same shape a templated case produces.
func (d *Document) ToArtifact(id string) models.PromptArtifact {
	meta := make(map[string]any, len(d.FrontmatterRaw)+1)
	for k, v := range d.FrontmatterRaw {
		meta[k] = v
	}
	if _, ok := meta["name"]; !ok && d.Frontmatter.Name != "" {
		meta["name"] = d.Frontmatter.Name
	}

	return models.PromptArtifact{
		ID:         id,
		Path:       d.Path,
		Format:     models.FormatDocument,
		RawContent: d.RawContent,
		Metadata:   meta,
	}
}
