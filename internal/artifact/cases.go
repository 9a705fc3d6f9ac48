package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/internal/dataset"
	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/template"
)

// Message is one templated chat message in a case definition.
type Message struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Case is one templated test-case definition. Message content may reference
// {{.Vars.x}} placeholders; Data optionally points at a CSV whose rows each
// expand the case into one artifact.
type Case struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Vars        map[string]string `yaml:"vars"`
	Data        string            `yaml:"data"`
	Messages    []Message         `yaml:"messages"`
}

// CaseFile is the templated-case file format: one YAML file declaring one or
// more cases.
type CaseFile struct {
	Cases []Case `yaml:"cases"`
	Path  string `yaml:"-"`
}

// ParseCaseFile parses a *.cases.yaml definition.
func ParseCaseFile(path string, content []byte) (*CaseFile, error) {
	var cf CaseFile
	if err := yaml.Unmarshal(content, &cf); err != nil {
		return nil, fmt.Errorf("parsing case file: %w", err)
	}
	if len(cf.Cases) == 0 {
		return nil, fmt.Errorf("case file declares no cases")
	}
	seen := make(map[string]bool, len(cf.Cases))
	for i, c := range cf.Cases {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("case %d: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate case name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Messages) == 0 {
			return nil, fmt.Errorf("case %q: at least one message is required", c.Name)
		}
	}
	cf.Path = path
	return &cf, nil
}

// Expand renders every case into artifacts, substituting placeholders with
// the case's declared vars (or one artifact per CSV row when data is set).
// Unresolved placeholders are returned as errors here, at discovery time.
func (cf *CaseFile) Expand(baseID string) ([]models.PromptArtifact, error) {
	var artifacts []models.PromptArtifact
	for i := range cf.Cases {
		c := &cf.Cases[i]

		varSets, err := cf.varSets(c)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}

		for j, vars := range varSets {
			id := baseID + "/" + slug(c.Name)
			if len(varSets) > 1 {
				id = fmt.Sprintf("%s-%d", id, j+1)
			}

			rendered, err := c.render(cf.Path, vars)
			if err != nil {
				return nil, fmt.Errorf("case %q: %w", c.Name, err)
			}

			artifacts = append(artifacts, models.PromptArtifact{
				ID:         id,
				Path:       cf.Path,
				Format:     models.FormatTemplatedCase,
				RawContent: rendered,
				Metadata:   c.metadata(vars),
			})
		}
	}
	return artifacts, nil
}

// varSets resolves the variable assignments a case expands under: its
// inline vars, or the inline vars overlaid by each CSV row.
func (cf *CaseFile) varSets(c *Case) ([]map[string]string, error) {
	if c.Data == "" {
		return []map[string]string{c.Vars}, nil
	}

	dataPath := c.Data
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(cf.Path), dataPath)
	}
	rows, err := dataset.LoadCSV(dataPath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("data file %s has no rows", c.Data)
	}

	sets := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		merged := make(map[string]string, len(c.Vars)+len(row))
		for k, v := range c.Vars {
			merged[k] = v
		}
		for k, v := range row {
			merged[k] = v
		}
		sets = append(sets, merged)
	}
	return sets, nil
}

// render substitutes placeholders in every message and flattens the
// conversation into one text block.
func (c *Case) render(sourcePath string, vars map[string]string) (string, error) {
	ctx := &template.Context{
		CaseName:   c.Name,
		SourcePath: sourcePath,
		Vars:       vars,
	}

	var sb strings.Builder
	for i, m := range c.Messages {
		content, err := template.Render(m.Content, ctx)
		if err != nil {
			return "", fmt.Errorf("message %d: %w", i, err)
		}
		role := m.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&sb, "[%s]\n%s\n", role, content)
		if i < len(c.Messages)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func (c *Case) metadata(vars map[string]string) map[string]any {
	meta := map[string]any{
		"name":          c.Name,
		"message_count": len(c.Messages),
	}
	if c.Description != "" {
		meta["description"] = c.Description
	}
	if len(vars) > 0 {
		varsAny := make(map[string]any, len(vars))
		for k, v := range vars {
			varsAny[k] = v
		}
		meta["vars"] = varsAny
	}
	return meta
}

// slug lowercases a case name and replaces spaces for use in artifact IDs.
func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
