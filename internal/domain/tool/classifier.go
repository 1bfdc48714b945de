package tool

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Category is the side-effect profile assigned to a tool.
type Category string

const (
	CategorySearch    Category = "search"
	CategoryAction    Category = "action"
	CategoryAmbiguous Category = "ambiguous"
)

// Valid reports whether c is one of the persisted category values.
func (c Category) Valid() bool {
	switch c {
	case CategorySearch, CategoryAction, CategoryAmbiguous:
		return true
	}
	return false
}

// Recorder receives one observation per filter call. The prometheus collector in
// internal/infra/metrics implements it.
type Recorder interface {
	ObserveFilter(input, retained int)
}

type keywordSets struct {
	search KeywordSet
	action KeywordSet
}

// Classifier partitions tool descriptors with two keyword vocabularies.
// Keyword sets can be swapped at runtime; readers never block.
type Classifier struct {
	logger   zerolog.Logger
	recorder Recorder
	sets     atomic.Pointer[keywordSets]
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ClassifierOption {
	return func(c *Classifier) { c.recorder = r }
}

// NewClassifier returns a classifier using the default keyword vocabularies.
func NewClassifier(logger zerolog.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{logger: logger.With().Str("component", "tool_classifier").Logger()}
	c.sets.Store(&keywordSets{search: SearchKeywords(), action: ActionKeywords()})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetKeywords replaces both vocabularies. Either set being empty is rejected and the
// current sets stay in place.
func (c *Classifier) SetKeywords(search, action []string) error {
	s, err := NewKeywordSet(search...)
	if err != nil {
		return fmt.Errorf("search keywords: %w", err)
	}
	a, err := NewKeywordSet(action...)
	if err != nil {
		return fmt.Errorf("action keywords: %w", err)
	}
	c.sets.Store(&keywordSets{search: s, action: a})
	c.logger.Info().Int("search", len(s)).Int("action", len(a)).Msg("keyword sets replaced")
	return nil
}

// Keywords returns copies of the active search and action sets.
func (c *Classifier) Keywords() (search, action KeywordSet) {
	sets := c.sets.Load()
	return append(KeywordSet(nil), sets.search...), append(KeywordSet(nil), sets.action...)
}

// Classify assigns a category to one tool. A tool matching both vocabularies is an
// action; a tool matching neither is ambiguous.
func (c *Classifier) Classify(d Describer) Category {
	return classifyWith(c.sets.Load(), d)
}

func classifyWith(sets *keywordSets, d Describer) Category {
	text := strings.ToLower(d.ToolName() + " " + d.ToolDescription())
	if sets.action.MatchIn(text) {
		return CategoryAction
	}
	if sets.search.MatchIn(text) {
		return CategorySearch
	}
	return CategoryAmbiguous
}

// FilterSearchTools keeps the tools that mention a search keyword and no action
// keyword, in input order.
func (c *Classifier) FilterSearchTools(tools []Descriptor) ([]Descriptor, error) {
	return Filter(c, tools)
}

// BuildToolsContext renders tools as "- name: description" lines joined by newlines.
func (c *Classifier) BuildToolsContext(tools []Descriptor) string {
	return BuildContext(tools)
}

// Filter is FilterSearchTools for any describer type; the result shares the
// caller's element type.
func Filter[T Describer](c *Classifier, tools []T) ([]T, error) {
	if err := ValidateDescriptors(tools); err != nil {
		return nil, err
	}

	sets := c.sets.Load()
	out := make([]T, 0, len(tools))
	for _, t := range tools {
		if classifyWith(sets, t) == CategorySearch {
			out = append(out, t)
		}
	}

	c.logger.Info().
		Int("input", len(tools)).
		Int("output", len(out)).
		Int("excluded", len(tools)-len(out)).
		Msg("filtered search tools")
	if c.recorder != nil {
		c.recorder.ObserveFilter(len(tools), len(out))
	}
	return out, nil
}

// BuildContext renders one "- name: description" line per tool.
func BuildContext[T Describer](tools []T) string {
	if len(tools) == 0 {
		return ""
	}
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, "- "+t.ToolName()+": "+t.ToolDescription())
	}
	return strings.Join(lines, "\n")
}

// Partition is the full three-way split of a tool list.
type Partition struct {
	Search    []Descriptor `json:"search"`
	Action    []Descriptor `json:"action"`
	Ambiguous []Descriptor `json:"ambiguous"`
}

// Total is the number of tools across all buckets.
func (p Partition) Total() int {
	return len(p.Search) + len(p.Action) + len(p.Ambiguous)
}

// Partition classifies every tool and groups them by category, order preserved.
func (c *Classifier) Partition(tools []Descriptor) (Partition, error) {
	if err := ValidateDescriptors(tools); err != nil {
		return Partition{}, err
	}
	sets := c.sets.Load()
	p := Partition{
		Search:    []Descriptor{},
		Action:    []Descriptor{},
		Ambiguous: []Descriptor{},
	}
	for _, t := range tools {
		switch classifyWith(sets, t) {
		case CategorySearch:
			p.Search = append(p.Search, t)
		case CategoryAction:
			p.Action = append(p.Action, t)
		default:
			p.Ambiguous = append(p.Ambiguous, t)
		}
	}
	return p, nil
}

// Explain lists the keywords that drove a tool's category.
func (c *Classifier) Explain(d Describer) (search, action []string) {
	sets := c.sets.Load()
	text := strings.ToLower(d.ToolName() + " " + d.ToolDescription())
	return sets.search.Matches(text), sets.action.Matches(text)
}
