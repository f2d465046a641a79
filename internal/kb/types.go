// File path: internal/kb/types.go
package kb

import "strings"

// SourceType identifies where an indexed chunk originated.
type SourceType string

const (
	SourceStatute         SourceType = "statute"
	SourceVideoTranscript SourceType = "video_transcript"
	SourcePolicyDoc       SourceType = "policy_doc"
)

// ParseSourceType maps a stored label onto a known source type, defaulting
// to statute for unrecognized values.
func ParseSourceType(value string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(value))) {
	case SourceVideoTranscript:
		return SourceVideoTranscript
	case SourcePolicyDoc:
		return SourcePolicyDoc
	default:
		return SourceStatute
	}
}

// Chunk is a unit of indexed statute or policy text. Similarity is a
// search-result annotation populated by the retrieval engine; it is never
// persisted.
type Chunk struct {
	ID            string     `json:"id"`
	Content       string     `json:"content"`
	SourceType    SourceType `json:"source_type"`
	SourceTitle   string     `json:"source_title"`
	SourceURL     string     `json:"source_url,omitempty"`
	SourceSection string     `json:"source_section,omitempty"`
	Similarity    float64    `json:"similarity,omitempty"`
}

// Label renders a short citation for the chunk, preferring the statute
// section when one is recorded.
func (c Chunk) Label() string {
	if section := strings.TrimSpace(c.SourceSection); section != "" {
		return "ORS " + section
	}
	return c.SourceTitle
}
