// Package filter selects the rows of a dataset that satisfy a FilterState.
package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rulings-explorer/backend/internal/dataset"
)

// State is the user's current selection. Empty or sentinel values leave a
// dimension unfiltered.
type State struct {
	Category     string   `json:"materia" query:"materia"`
	ResourceType string   `json:"tipo" query:"tipo"`
	Outcome      string   `json:"resultado" query:"resultado"`
	Search       string   `json:"q" query:"q"`
	Terms        []string `json:"terms,omitempty" query:"terms"`
}

// Normalize maps the sentinel to "" and trims the search inputs.
func (s State) Normalize(sentinel string) State {
	unset := func(v string) string {
		if v == sentinel {
			return ""
		}
		return v
	}
	out := State{
		Category:     unset(s.Category),
		ResourceType: unset(s.ResourceType),
		Outcome:      unset(s.Outcome),
		Search:       strings.TrimSpace(s.Search),
	}
	for _, t := range s.Terms {
		if t = strings.TrimSpace(t); t != "" {
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

// Key is a canonical encoding of the selection, usable as a cache key.
func (s State) Key() string {
	return strings.Join([]string{
		"m=" + s.Category,
		"t=" + s.ResourceType,
		"r=" + s.Outcome,
		"q=" + s.Search,
		"terms=" + strings.Join(s.Terms, "\n"),
	}, "\x1f")
}

// IsZero reports whether no dimension is filtered.
func (s State) IsZero() bool {
	return s.Category == "" && s.ResourceType == "" && s.Outcome == "" && s.Search == "" && len(s.Terms) == 0
}

// ParseTerms splits an advanced-search text area into one term per line.
func ParseTerms(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Fold lowercases s for case-insensitive matching. Only case differs
// between matches; "ß" does not match "ss".
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Contains reports whether needle occurs in haystack ignoring case.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Filter evaluates States against one dataset. The descriptor column is
// case-folded once up front; the dataset itself is never modified.
type Filter struct {
	ds       *dataset.Dataset
	schema   dataset.Schema
	sentinel string
	folded   []string
}

func New(ds *dataset.Dataset, schema dataset.Schema, sentinel string) *Filter {
	f := &Filter{ds: ds, schema: schema, sentinel: sentinel}
	if schema.Descriptors != "" {
		cells := ds.Column(schema.Descriptors)
		f.folded = make([]string, len(cells))
		for i, c := range cells {
			f.folded[i] = Fold(c)
		}
	}
	return f
}

// Apply returns, in dataset order, the rows matching the conjunction of
// category, resource type, outcome and descriptor search. Dimensions whose
// column is not bound are skipped.
func (f *Filter) Apply(s State) []int {
	s = s.Normalize(f.sentinel)

	type eq struct {
		col   int
		value string
	}
	var preds []eq
	add := func(column, value string) {
		if value == "" || column == "" {
			return
		}
		if i, ok := f.ds.Index(column); ok {
			preds = append(preds, eq{i, value})
		}
	}
	add(f.schema.Category, s.Category)
	add(f.schema.ResourceType, s.ResourceType)
	add(f.schema.Outcome, s.Outcome)

	var needle string
	if s.Search != "" && f.folded != nil {
		needle = Fold(s.Search)
	}

	out := make([]int, 0, f.ds.Len())
rows:
	for r, rec := range f.ds.Rows {
		for _, p := range preds {
			if rec[p.col] != p.value {
				continue rows
			}
		}
		if needle != "" && !strings.Contains(f.folded[r], needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Advanced returns the rows whose descriptors contain every term, ignoring
// case. It searches the whole dataset, independent of the other filters.
// No terms, or no descriptor column, yields no rows.
func (f *Filter) Advanced(terms []string) []int {
	var needles []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			needles = append(needles, Fold(t))
		}
	}
	if len(needles) == 0 || f.folded == nil {
		return nil
	}

	var out []int
rows:
	for r, cell := range f.folded {
		for _, n := range needles {
			if !strings.Contains(cell, n) {
				continue rows
			}
		}
		out = append(out, r)
	}
	return out
}

// Searchable reports whether a descriptor column is bound.
func (f *Filter) Searchable() bool {
	return f.folded != nil
}
