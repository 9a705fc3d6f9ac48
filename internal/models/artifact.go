package models

// ArtifactFormat identifies which on-disk format produced a PromptArtifact.
// It exists for reporting only; evaluation behavior never branches on it.
type ArtifactFormat string

const (
	// FormatDocument is a freeform markdown document with YAML frontmatter.
	FormatDocument ArtifactFormat = "document"
	// FormatTemplatedCase is a templated test-case definition whose message
	// templates were substituted at discovery time.
	FormatTemplatedCase ArtifactFormat = "templated_case"
)

// PromptArtifact is one evaluatable prompt definition. Both artifact formats
// normalize into this shape at discovery; the struct is immutable for the
// duration of an evaluation batch.
type PromptArtifact struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Format     ArtifactFormat `json:"format"`
	RawContent string         `json:"raw_content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// MetaString returns the named metadata value if it is a non-empty string.
func (a *PromptArtifact) MetaString(key string) string {
	if a.Metadata == nil {
		return ""
	}
	if s, ok := a.Metadata[key].(string); ok {
		return s
	}
	return ""
}
