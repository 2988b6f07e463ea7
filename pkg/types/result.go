package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entity is a named entity attached to a search result.
type Entity struct {
	Text  string `json:"text" yaml:"text"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// UnmarshalJSON accepts either {"text": ..., "label": ...} or a bare string.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = Entity{Text: s}
		return nil
	}
	type plain Entity
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	*e = Entity(p)
	return nil
}

// UnmarshalYAML accepts either a mapping or a scalar.
func (e *Entity) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*e = Entity{Text: value.Value}
		return nil
	}
	type plain Entity
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	*e = Entity(p)
	return nil
}

// Topic is a topic attached to a search result, with an optional salience score.
type Topic struct {
	Text  string  `json:"text" yaml:"text"`
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// UnmarshalJSON accepts either {"text": ..., "score": ...} or a bare string.
func (t *Topic) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Topic{Text: s}
		return nil
	}
	type plain Topic
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode topic: %w", err)
	}
	*t = Topic(p)
	return nil
}

// UnmarshalYAML accepts either a mapping or a scalar.
func (t *Topic) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*t = Topic{Text: value.Value}
		return nil
	}
	type plain Topic
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("failed to decode topic: %w", err)
	}
	*t = Topic(p)
	return nil
}

// CrossReference is an explicit link from a result to another document.
type CrossReference struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// SearchResult is one ranked retrieval hit. Every optional field degrades to
// its zero value when absent.
type SearchResult struct {
	ID              string           `json:"id,omitempty" yaml:"id,omitempty"`
	DocumentID      string           `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Text            string           `json:"text" yaml:"text"`
	SourceType      string           `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	SourceTitle     string           `json:"source_title,omitempty" yaml:"source_title,omitempty"`
	SourceURL       string           `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	SectionTitle    string           `json:"section_title,omitempty" yaml:"section_title,omitempty"`
	ProjectName     string           `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	Breadcrumb      string           `json:"breadcrumb,omitempty" yaml:"breadcrumb,omitempty"`
	Depth           int              `json:"depth,omitempty" yaml:"depth,omitempty"`
	ParentID        string           `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Score           float64          `json:"score" yaml:"score"`
	Entities        []Entity         `json:"entities,omitempty" yaml:"entities,omitempty"`
	Topics          []Topic          `json:"topics,omitempty" yaml:"topics,omitempty"`
	Keywords        []string         `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	CrossReferences []CrossReference `json:"cross_references,omitempty" yaml:"cross_references,omitempty"`
}

// Identity returns the unique identity of the result: the explicit id when
// present, otherwise the document key.
func (r *SearchResult) Identity() string {
	if r.ID != "" {
		return r.ID
	}
	return r.DocumentKey()
}

// DocumentKey identifies the source document the result belongs to: the
// explicit document id, otherwise "source_type:source_title" (or the bare
// title when the source type is unknown), otherwise the result id.
func (r *SearchResult) DocumentKey() string {
	if r.DocumentID != "" {
		return r.DocumentID
	}
	switch {
	case r.SourceType != "" && r.SourceTitle != "":
		return r.SourceType + ":" + r.SourceTitle
	case r.SourceTitle != "":
		return r.SourceTitle
	}
	return r.ID
}

// DisplayTitle picks the most specific human-readable title available.
func (r *SearchResult) DisplayTitle() string {
	if r.SectionTitle != "" {
		return r.SectionTitle
	}
	if crumbs := r.BreadcrumbParts(); len(crumbs) > 0 {
		return crumbs[len(crumbs)-1]
	}
	if r.SourceTitle != "" {
		return r.SourceTitle
	}
	return r.Identity()
}

// BreadcrumbParts splits a breadcrumb such as "Docs > Auth > Tokens" into
// trimmed, non-empty parts.
func (r *SearchResult) BreadcrumbParts() []string {
	if strings.TrimSpace(r.Breadcrumb) == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(r.Breadcrumb, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// EntityTexts returns the entity surface forms.
func (r *SearchResult) EntityTexts() []string {
	out := make([]string, 0, len(r.Entities))
	for _, e := range r.Entities {
		out = append(out, e.Text)
	}
	return out
}

// TopicTexts returns the topic surface forms.
func (r *SearchResult) TopicTexts() []string {
	out := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		out = append(out, t.Text)
	}
	return out
}

// HasText reports whether the result carries non-blank text.
func (r *SearchResult) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// Validate rejects results that cannot be identified or analyzed at all.
func (r *SearchResult) Validate() error {
	if r.Identity() == "" && !r.HasText() {
		return ErrUnusableResult
	}
	return nil
}

// NormalizeResults validates a batch once at the boundary. It trims fields,
// drops blank and duplicate entities and topics, assigns every result a
// unique ID (suffixing "#n" on collisions) and skips unusable results.
// It returns the cleaned batch and the number of results dropped.
func NormalizeResults(results []SearchResult) ([]SearchResult, int) {
	out := make([]SearchResult, 0, len(results))
	seen := make(map[string]int, len(results))
	dropped := 0

	for _, r := range results {
		r.ID = strings.TrimSpace(r.ID)
		r.DocumentID = strings.TrimSpace(r.DocumentID)
		r.SourceType = strings.TrimSpace(r.SourceType)
		r.SourceTitle = strings.TrimSpace(r.SourceTitle)
		r.SectionTitle = strings.TrimSpace(r.SectionTitle)
		r.ProjectName = strings.TrimSpace(r.ProjectName)

		if err := r.Validate(); err != nil {
			dropped++
			continue
		}

		r.Entities = dedupEntities(r.Entities)
		r.Topics = dedupTopics(r.Topics)

		id := r.Identity()
		if id == "" {
			id = "result"
		}
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n+1)
		}
		seen[id]++
		r.ID = id

		out = append(out, r)
	}
	return out, dropped
}

func dedupEntities(in []Entity) []Entity {
	seen := make(map[string]struct{}, len(in))
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		e.Text = strings.TrimSpace(e.Text)
		key := strings.ToLower(e.Text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func dedupTopics(in []Topic) []Topic {
	seen := make(map[string]struct{}, len(in))
	out := make([]Topic, 0, len(in))
	for _, t := range in {
		t.Text = strings.TrimSpace(t.Text)
		key := strings.ToLower(t.Text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
