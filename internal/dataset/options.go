package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Options lists the distinct non-missing values of column in sorted order,
// prefixed with sentinel. A missing column yields the sentinel alone and a
// warning.
func Options(ds *Dataset, column, sentinel string) ([]string, *Warning) {
	if column == "" || !ds.Has(column) {
		return []string{sentinel}, &Warning{
			Feature: "options",
			Message: fmt.Sprintf("Columna '%s' no encontrada. Columnas disponibles: %s", column, strings.Join(ds.Columns, ", ")),
		}
	}

	seen := make(map[string]struct{})
	var values []string
	for _, v := range ds.Column(column) {
		if IsMissing(v) || strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return append([]string{sentinel}, values...), nil
}

// Distinct counts the distinct non-missing values of column; 0 when the
// column is absent.
func Distinct(ds *Dataset, column string) int {
	if column == "" || !ds.Has(column) {
		return 0
	}
	seen := make(map[string]struct{})
	for _, v := range ds.Column(column) {
		if IsMissing(v) || strings.TrimSpace(v) == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts tallies column over rows (all rows when nil) and returns at
// most limit entries by descending count. Ties keep first-seen order;
// missing values are not counted.
func ValueCounts(ds *Dataset, rows []int, column string, limit int) []ValueCount {
	i, ok := ds.Index(column)
	if !ok {
		return nil
	}
	if rows == nil {
		rows = ds.AllRows()
	}

	pos := make(map[string]int)
	var counts []ValueCount
	for _, r := range rows {
		v := ds.Rows[r][i]
		if IsMissing(v) || strings.TrimSpace(v) == "" {
			continue
		}
		if p, ok := pos[v]; ok {
			counts[p].Count++
			continue
		}
		pos[v] = len(counts)
		counts = append(counts, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(counts, func(a, b int) bool { return counts[a].Count > counts[b].Count })
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
