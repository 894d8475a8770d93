package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rulings-explorer/backend/internal/dataset"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/internal/temporal"
	"github.com/rulings-explorer/backend/internal/terms"
)

var (
	ErrNoColumns     = errors.New("select at least one column")
	ErrUnknownColumn = errors.New("unknown column")
)

const (
	msgNoMatches     = "No hay sentencias que coincidan con los filtros seleccionados."
	msgNoDescriptors = "Columna 'Descriptores' no encontrada en el dataset"
)

type Counters struct {
	Total         int `json:"total"`
	Filtered      int `json:"filtered"`
	Categories    int `json:"categories"`
	ResourceTypes int `json:"resource_types"`
}

type Chart struct {
	Title   string               `json:"title"`
	Bars    []dataset.ValueCount `json:"bars"`
	Warning string               `json:"warning,omitempty"`
}

// Max is the largest bar, used to scale rendered charts.
func (c Chart) Max() int {
	m := 0
	for _, b := range c.Bars {
		if b.Count > m {
			m = b.Count
		}
	}
	return m
}

type Grid struct {
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	TotalRows  int        `json:"total_rows"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
	Empty      bool       `json:"empty"`
	Message    string     `json:"message,omitempty"`
}

type SummaryView struct {
	State         filter.State      `json:"state"`
	Counters      Counters          `json:"counters"`
	TopCategories Chart             `json:"top_categories"`
	TopOutcomes   Chart             `json:"top_outcomes"`
	Preview       Grid              `json:"preview"`
	Warnings      []dataset.Warning `json:"warnings,omitempty"`
}

type OptionsView struct {
	Sentinel       string            `json:"sentinel"`
	Categories     []string          `json:"categories"`
	ResourceTypes  []string          `json:"resource_types"`
	Outcomes       []string          `json:"outcomes"`
	ResourceColumn string            `json:"resource_column,omitempty"`
	OutcomeColumn  string            `json:"outcome_column,omitempty"`
	Columns        []string          `json:"columns"`
	DefaultColumns []string          `json:"default_columns"`
	Warnings       []dataset.Warning `json:"warnings,omitempty"`
}

type RankedTerm struct {
	Rank  int    `json:"rank"`
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type TermsView struct {
	N       int               `json:"n"`
	Left    []RankedTerm      `json:"left"`
	Right   []RankedTerm      `json:"right"`
	Chart   []terms.TermCount `json:"chart"`
	Warning string            `json:"warning,omitempty"`
}

type AdvancedView struct {
	Terms   []string `json:"terms"`
	Found   int      `json:"found"`
	Grid    Grid     `json:"grid"`
	Warning string   `json:"warning,omitempty"`
}

type TimelineView struct {
	Column  string               `json:"column,omitempty"`
	Years   []temporal.YearCount `json:"years,omitempty"`
	Warning string               `json:"warning,omitempty"`
}

type InfoView struct {
	Source      string         `json:"source"`
	Fingerprint string         `json:"fingerprint"`
	Rows        int            `json:"rows"`
	Columns     []string       `json:"columns"`
	Head        [][]string     `json:"head"`
	Schema      dataset.Schema `json:"schema"`
}

// Options lists the selector values for category, resource type and
// outcome. Unbound columns degrade to the sentinel alone.
func (e *Engine) Options() *OptionsView {
	v := &OptionsView{
		Sentinel:       e.opt.Sentinel,
		ResourceColumn: e.schema.ResourceType,
		OutcomeColumn:  e.schema.Outcome,
		Columns:        e.ds.Columns,
		DefaultColumns: e.schema.DefaultColumns(e.ds),
	}
	var w *dataset.Warning
	v.Categories, w = dataset.Options(e.ds, e.schema.Category, e.opt.Sentinel)
	v.addWarning(w)
	v.ResourceTypes, w = dataset.Options(e.ds, e.schema.ResourceType, e.opt.Sentinel)
	v.addWarning(w)
	v.Outcomes, w = dataset.Options(e.ds, e.schema.Outcome, e.opt.Sentinel)
	v.addWarning(w)
	return v
}

func (v *OptionsView) addWarning(w *dataset.Warning) {
	if w != nil {
		v.Warnings = append(v.Warnings, *w)
	}
}

// Summary renders the counters, the two ranked charts and a short preview
// of the filtered rows.
func (e *Engine) Summary(ctx context.Context, state filter.State) *SummaryView {
	metrics.Interactions.WithLabelValues("summary").Inc()
	rows := e.Filtered(ctx, state)
	metrics.FilteredRows.Observe(float64(len(rows)))

	v := &SummaryView{
		State: state.Normalize(e.opt.Sentinel),
		Counters: Counters{
			Total:         e.ds.Len(),
			Filtered:      len(rows),
			Categories:    dataset.Distinct(e.ds, e.schema.Category),
			ResourceTypes: dataset.Distinct(e.ds, e.schema.ResourceType),
		},
		TopCategories: e.chart("Materias más comunes", e.schema.Category, "Columna 'Materia' no disponible"),
		TopOutcomes:   e.chart("Resultados más frecuentes", e.schema.Outcome, "Columna de resultados no disponible"),
		Warnings:      e.schema.Warnings,
	}

	var cols []string
	for _, c := range []string{e.schema.ID, e.schema.Title, e.schema.Category, e.schema.Outcome, e.schema.ResourceType} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		v.Preview = Grid{Empty: true, Message: "No hay columnas disponibles para mostrar"}
		return v
	}
	v.Preview = e.page(rows, cols, 1, e.opt.PreviewRows)
	return v
}

func (e *Engine) chart(title, column, missing string) Chart {
	if column == "" {
		return Chart{Title: title, Warning: missing}
	}
	return Chart{Title: title, Bars: dataset.ValueCounts(e.ds, nil, column, e.opt.ChartLimit)}
}

// ResolveColumns validates a column selection. nil selects the defaults;
// an explicit empty selection is an error.
func (e *Engine) ResolveColumns(columns []string) ([]string, error) {
	if columns == nil {
		return e.schema.DefaultColumns(e.ds), nil
	}
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	for _, c := range columns {
		if !e.ds.Has(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
	}
	return columns, nil
}

// Records returns one page of the filtered grid restricted to columns.
func (e *Engine) Records(ctx context.Context, state filter.State, columns []string, page, size int) (*Grid, error) {
	cols, err := e.ResolveColumns(columns)
	if err != nil {
		return nil, err
	}
	metrics.Interactions.WithLabelValues("records").Inc()

	rows := e.Filtered(ctx, state)
	if size <= 0 {
		size = e.opt.PageSize
	}
	if size > e.opt.MaxPageSize {
		size = e.opt.MaxPageSize
	}
	g := e.page(rows, cols, page, size)
	if g.Empty {
		metrics.EmptyResults.WithLabelValues("records").Inc()
	}
	return &g, nil
}

func (e *Engine) page(rows []int, cols []string, page, size int) Grid {
	g := Grid{Columns: cols, TotalRows: len(rows), PageSize: size, Rows: [][]string{}}
	if len(rows) == 0 {
		g.Empty = true
		g.Message = msgNoMatches
		return g
	}
	g.TotalPages = (len(rows) + size - 1) / size
	if page < 1 {
		page = 1
	}
	if page > g.TotalPages {
		page = g.TotalPages
	}
	g.Page = page

	start := (page - 1) * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	g.Rows = e.ds.Project(rows[start:end], cols)
	g.Message = fmt.Sprintf("Se encontraron %d sentencias que coinciden con los filtros.", len(rows))
	return g
}

// ClampTopTerms bounds a requested term count to the configured slider
// range; 0 picks the default.
func (e *Engine) ClampTopTerms(n int) int {
	switch {
	case n == 0:
		return e.opt.DefaultTopTerms
	case n < e.opt.MinTopTerms:
		return e.opt.MinTopTerms
	case n > e.opt.MaxTopTerms:
		return e.opt.MaxTopTerms
	}
	return n
}

// TopTermsRange is the inclusive range accepted for the term count.
func (e *Engine) TopTermsRange() (int, int) {
	return e.opt.MinTopTerms, e.opt.MaxTopTerms
}

// Terms lists the n most frequent descriptor terms split into two halves,
// and the leading terms for the chart.
func (e *Engine) Terms(n int) *TermsView {
	metrics.Interactions.WithLabelValues("terms").Inc()
	n = e.ClampTopTerms(n)
	v := &TermsView{N: n, Left: []RankedTerm{}, Right: []RankedTerm{}, Chart: []terms.TermCount{}}

	table := e.TermTable()
	if table == nil {
		v.Warning = msgNoDescriptors
		return v
	}

	top := table.Top(n)
	half := n / 2
	for i, tc := range top {
		rt := RankedTerm{Rank: i + 1, Term: tc.Term, Count: tc.Count}
		if i < half {
			v.Left = append(v.Left, rt)
		} else {
			v.Right = append(v.Right, rt)
		}
	}
	chart := top
	if len(chart) > e.opt.ChartTerms {
		chart = chart[:e.opt.ChartTerms]
	}
	v.Chart = chart
	return v
}

// AdvancedSearch lists every ruling whose descriptors contain all terms.
func (e *Engine) AdvancedSearch(ctx context.Context, searchTerms []string) *AdvancedView {
	metrics.Interactions.WithLabelValues("advanced").Inc()
	norm := filter.State{Terms: searchTerms}.Normalize(e.opt.Sentinel).Terms
	v := &AdvancedView{Terms: norm}
	if v.Terms == nil {
		v.Terms = []string{}
	}

	if e.schema.Descriptors == "" {
		v.Warning = "Columna 'Descriptores' no disponible para búsqueda avanzada"
		v.Grid = Grid{Empty: true, Rows: [][]string{}}
		return v
	}
	if len(norm) == 0 {
		v.Grid = Grid{Columns: e.schema.SearchColumns(), Empty: true, Rows: [][]string{}}
		return v
	}
	if len(norm) > e.opt.MaxSearchTerms {
		v.Warning = fmt.Sprintf("Demasiados términos de búsqueda: se permiten como máximo %d", e.opt.MaxSearchTerms)
		v.Grid = Grid{Columns: e.schema.SearchColumns(), Empty: true, Rows: [][]string{}}
		return v
	}

	rows := e.Matching(ctx, norm)
	v.Found = len(rows)
	size := len(rows)
	if size == 0 {
		size = 1
	}
	v.Grid = e.page(rows, e.schema.SearchColumns(), 1, size)
	if v.Grid.Empty {
		metrics.EmptyResults.WithLabelValues("advanced").Inc()
	}
	return v
}

// Timeline counts rulings per sentence year. Any unparseable date turns
// the whole view into a warning.
func (e *Engine) Timeline() *TimelineView {
	metrics.Interactions.WithLabelValues("timeline").Inc()
	v := &TimelineView{Column: e.schema.Date}
	if e.schema.Date == "" {
		v.Warning = "Columna de fecha de sentencia no encontrada; análisis temporal no disponible"
		return v
	}
	tl, err := e.yearTally()
	if err != nil {
		v.Warning = fmt.Sprintf("No fue posible interpretar las fechas con el formato día-mes-año: %v", err)
		return v
	}
	v.Years = tl.Years
	return v
}

// Info describes the loaded dataset: columns, size and its first rows.
func (e *Engine) Info() *InfoView {
	n := e.ds.Len()
	if n > 3 {
		n = 3
	}
	head := make([]int, n)
	for i := range head {
		head[i] = i
	}
	return &InfoView{
		Source:      e.ds.Source,
		Fingerprint: e.ds.Fingerprint(),
		Rows:        e.ds.Len(),
		Columns:     e.ds.Columns,
		Head:        e.ds.Project(head, e.ds.Columns),
		Schema:      e.schema,
	}
}
