// Package dashboard composes the dataset, filter, term and temporal
// packages into the views served to the user.
package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/dataset"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/internal/temporal"
	"github.com/rulings-explorer/backend/internal/terms"
	"github.com/rulings-explorer/backend/pkg/logger"
	"github.com/rulings-explorer/backend/pkg/utils"
)

// Cache is a shared second-level store for filtered row sets, so that
// several replicas serving the same dataset reuse each other's work.
type Cache interface {
	GetRows(ctx context.Context, key string) ([]int, bool, error)
	SetRows(ctx context.Context, key string, rows []int, ttl time.Duration) error
}

type Options struct {
	Sentinel        string
	DateLayout      string
	ChartLimit      int
	ChartTerms      int
	DefaultTopTerms int
	MinTopTerms     int
	MaxTopTerms     int
	PreviewRows     int
	PageSize        int
	MaxPageSize     int
	MaxSearchTerms  int
	MemoTTL         time.Duration
	Cache           Cache
	CacheTTL        time.Duration
}

func DefaultOptions() Options {
	return Options{
		Sentinel:        "Todos",
		DateLayout:      temporal.DefaultLayout,
		ChartLimit:      10,
		ChartTerms:      15,
		DefaultTopTerms: 20,
		MinTopTerms:     10,
		MaxTopTerms:     50,
		PreviewRows:     10,
		PageSize:        50,
		MaxPageSize:     500,
		MaxSearchTerms:  20,
		MemoTTL:         10 * time.Minute,
		CacheTTL:        10 * time.Minute,
	}
}

// Engine answers every dashboard interaction from the immutable dataset
// it was built with. Derived results are memoized; it is safe for
// concurrent use.
type Engine struct {
	ds     *dataset.Dataset
	schema dataset.Schema
	filter *filter.Filter
	opt    Options
	memo   *gocache.Cache

	termsOnce sync.Once
	termTable *terms.Table

	timelineOnce sync.Once
	timeline     *temporal.Timeline
	timelineErr  error
}

func NewEngine(ds *dataset.Dataset, opt Options) *Engine {
	def := DefaultOptions()
	if opt.Sentinel == "" {
		opt.Sentinel = def.Sentinel
	}
	if opt.DateLayout == "" {
		opt.DateLayout = def.DateLayout
	}
	if opt.ChartLimit <= 0 {
		opt.ChartLimit = def.ChartLimit
	}
	if opt.ChartTerms <= 0 {
		opt.ChartTerms = def.ChartTerms
	}
	if opt.MinTopTerms <= 0 {
		opt.MinTopTerms = def.MinTopTerms
	}
	if opt.MaxTopTerms < opt.MinTopTerms {
		opt.MaxTopTerms = def.MaxTopTerms
	}
	if opt.DefaultTopTerms <= 0 {
		opt.DefaultTopTerms = def.DefaultTopTerms
	}
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = def.PreviewRows
	}
	if opt.PageSize <= 0 {
		opt.PageSize = def.PageSize
	}
	if opt.MaxPageSize < opt.PageSize {
		opt.MaxPageSize = opt.PageSize
	}
	if opt.MaxSearchTerms <= 0 {
		opt.MaxSearchTerms = def.MaxSearchTerms
	}
	if opt.MemoTTL <= 0 {
		opt.MemoTTL = def.MemoTTL
	}
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = def.CacheTTL
	}

	schema := dataset.ResolveSchema(ds)
	for _, w := range schema.Warnings {
		logger.Warn("Column not resolved", zap.String("feature", w.Feature), zap.String("message", w.Message))
	}
	metrics.DatasetRows.Set(float64(ds.Len()))
	metrics.ColumnWarnings.Set(float64(len(schema.Warnings)))

	return &Engine{
		ds:     ds,
		schema: schema,
		filter: filter.New(ds, schema, opt.Sentinel),
		opt:    opt,
		memo:   gocache.New(opt.MemoTTL, 2*opt.MemoTTL),
	}
}

func (e *Engine) Dataset() *dataset.Dataset {
	return e.ds
}

func (e *Engine) Schema() dataset.Schema {
	return e.schema
}

// MaxSearchTerms is the most terms one advanced search accepts.
func (e *Engine) MaxSearchTerms() int {
	return e.opt.MaxSearchTerms
}

func (e *Engine) Sentinel() string {
	return e.opt.Sentinel
}

// Filtered returns the rows matching state. The result is shared with the
// memo and must not be modified.
func (e *Engine) Filtered(ctx context.Context, state filter.State) []int {
	state = state.Normalize(e.opt.Sentinel)
	if state.IsZero() {
		return e.ds.AllRows()
	}
	return e.cached(ctx, "filter", state.Key(), func() []int {
		return e.filter.Apply(state)
	})
}

// Matching returns the rows whose descriptors contain every term.
func (e *Engine) Matching(ctx context.Context, searchTerms []string) []int {
	norm := filter.State{Terms: searchTerms}.Normalize(e.opt.Sentinel).Terms
	if len(norm) == 0 {
		return nil
	}
	return e.cached(ctx, "advanced", strings.Join(norm, "\n"), func() []int {
		return e.filter.Advanced(norm)
	})
}

func (e *Engine) cached(ctx context.Context, kind, key string, compute func() []int) []int {
	k := utils.HashParts(e.ds.Fingerprint(), kind, key)

	if v, ok := e.memo.Get(k); ok {
		metrics.CacheHits.WithLabelValues("memo").Inc()
		return v.([]int)
	}
	metrics.CacheMisses.WithLabelValues("memo").Inc()

	if e.opt.Cache != nil {
		rows, ok, err := e.opt.Cache.GetRows(ctx, k)
		switch {
		case err != nil:
			logger.Debug("Shared cache unavailable", zap.Error(err))
		case ok:
			metrics.CacheHits.WithLabelValues("shared").Inc()
			e.memo.SetDefault(k, rows)
			return rows
		default:
			metrics.CacheMisses.WithLabelValues("shared").Inc()
		}
	}

	rows := compute()
	e.memo.SetDefault(k, rows)
	if e.opt.Cache != nil {
		if err := e.opt.Cache.SetRows(ctx, k, rows, e.opt.CacheTTL); err != nil {
			logger.Debug("Shared cache write skipped", zap.Error(err))
		}
	}
	return rows
}

// TermTable is the descriptor term frequency over the whole dataset,
// computed once per engine. Nil when there is no descriptor column.
func (e *Engine) TermTable() *terms.Table {
	e.termsOnce.Do(func() {
		if e.schema.Descriptors == "" {
			return
		}
		e.termTable = terms.Count(e.ds.Column(e.schema.Descriptors))
		metrics.DistinctTerms.Set(float64(e.termTable.Len()))
		logger.Info("Descriptor terms counted",
			zap.Int("distinct", e.termTable.Len()),
			zap.Int("occurrences", e.termTable.Total()),
		)
	})
	return e.termTable
}

func (e *Engine) yearTally() (*temporal.Timeline, error) {
	e.timelineOnce.Do(func() {
		if e.schema.Date == "" {
			return
		}
		e.timeline, e.timelineErr = temporal.CountByYear(e.ds.Column(e.schema.Date), e.opt.DateLayout)
		if e.timelineErr != nil {
			logger.Warn("Sentence dates not parseable", zap.Error(e.timelineErr))
		}
	})
	return e.timeline, e.timelineErr
}
