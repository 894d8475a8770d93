// Package temporal tallies rulings per sentence year.
package temporal

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultLayout is day-month-year, e.g. 31-12-2020 or 1-3-2019.
const DefaultLayout = "2-1-2006"

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type Timeline struct {
	Years   []YearCount `json:"years"`
	Parsed  int         `json:"parsed"`
	Skipped int         `json:"skipped"`
}

// ParseError reports the first value that did not match the layout.
type ParseError struct {
	Row    int
	Value  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: date %q does not match layout %s", e.Row, e.Value, e.Layout)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CountByYear parses every non-blank value with layout and counts rows
// per year, ascending. Blank values are skipped. The first value that
// fails to parse aborts the whole tally.
func CountByYear(values []string, layout string) (*Timeline, error) {
	if layout == "" {
		layout = DefaultLayout
	}

	perYear := make(map[int]int)
	tl := &Timeline{}
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			tl.Skipped++
			continue
		}
		ts, err := time.Parse(layout, v)
		if err != nil {
			return nil, &ParseError{Row: i, Value: v, Layout: layout, Err: err}
		}
		perYear[ts.Year()]++
		tl.Parsed++
	}

	tl.Years = make([]YearCount, 0, len(perYear))
	for y, n := range perYear {
		tl.Years = append(tl.Years, YearCount{Year: y, Count: n})
	}
	sort.Slice(tl.Years, func(a, b int) bool { return tl.Years[a].Year < tl.Years[b].Year })
	return tl, nil
}
