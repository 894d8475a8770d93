// Package terms tokenizes descriptor cells and tallies term frequency.
package terms

import (
	"sort"
	"strings"
)

// Tokenize splits a descriptor cell on commas, trims each piece and drops
// the pieces that are empty after trimming.
func Tokenize(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Table maps each distinct term to its occurrence count. Terms are
// case-sensitive. A Table is read-only once built.
type Table struct {
	counts []TermCount
	pos    map[string]int
	total  int
}

// Count tokenizes every cell and tallies the terms.
func Count(cells []string) *Table {
	t := &Table{pos: make(map[string]int)}
	for _, cell := range cells {
		for _, term := range Tokenize(cell) {
			t.total++
			if i, ok := t.pos[term]; ok {
				t.counts[i].Count++
				continue
			}
			t.pos[term] = len(t.counts)
			t.counts = append(t.counts, TermCount{Term: term, Count: 1})
		}
	}
	return t
}

// Top returns the n most frequent terms by descending count; equal counts
// keep the order in which the terms were first seen. n <= 0 returns all.
func (t *Table) Top(n int) []TermCount {
	out := make([]TermCount, len(t.counts))
	copy(out, t.counts)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (t *Table) Get(term string) int {
	if i, ok := t.pos[term]; ok {
		return t.counts[i].Count
	}
	return 0
}

// Len is the number of distinct terms.
func (t *Table) Len() int {
	return len(t.counts)
}

// Total is the number of term occurrences.
func (t *Table) Total() int {
	return t.total
}
